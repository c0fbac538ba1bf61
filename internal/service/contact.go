package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrContactDisabled = errors.New("contact form is not configured")
	ErrInvalidContact  = errors.New("name, a valid email and a message are required")
)

type ContactService struct {
	sender ContactSender
}

func (s *ContactService) Enabled() bool { return s.sender != nil }

func (s *ContactService) Send(ctx context.Context, name, email, message string) error {
	if s.sender == nil {
		return ErrContactDisabled
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(message) == "" {
		return ErrInvalidContact
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return ErrInvalidContact
	}
	return s.sender.SendContact(ctx, name, email, message)
}
