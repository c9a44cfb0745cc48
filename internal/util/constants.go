package util

// MaxHistory bounds a single message-history read.
const MaxHistory = 200
