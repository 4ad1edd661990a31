package models

// QuestionMaxLength is the maximum accepted question length after trimming,
// counted in characters rather than bytes.
const QuestionMaxLength = 2000
