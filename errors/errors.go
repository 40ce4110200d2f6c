package errors

import "fmt"

var (
	ErrEmptyContent        = fmt.Errorf("message content is empty")
	ErrTransport           = fmt.Errorf("transport failure")
	ErrUnknownConversation = fmt.Errorf("unknown conversation")
	ErrUnknownMessage      = fmt.Errorf("unknown message")
	ErrSessionClosed       = fmt.Errorf("conversation session is closed")
	ErrNotFailed           = fmt.Errorf("message is not in failed state")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidToken        = fmt.Errorf("invalid or expired token")
)
