package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrChatbotNotFound   = errors.New("chatbot not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid processing status transition")
	ErrNotPDF            = errors.New("file must be a PDF")
	ErrFileTooLarge      = errors.New("file is too large")
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoChunks          = errors.New("no text could be extracted from the PDF")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidXP         = errors.New("xp amount must be positive")
	ErrConflict          = errors.New("record changed concurrently")
)
