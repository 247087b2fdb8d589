package constants

import "time"

// Input limits
const (
	MaxCommentLength = 2000  // Maximum characters for a single comment
	MaxContentLength = 20000 // Maximum characters of element content
)

// WebSocket configuration
const (
	WSPingInterval = 30 * time.Second
)
