// Package auth signs customers in with a one-time code sent to their phone and hands
// out bearer sessions. Codes and sessions live in Redis and expire on their own.
package auth

import (
	"context"

	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

// CodeSender delivers a code to a phone.
type CodeSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender only records that a code was issued. The code itself is never logged.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, phone, code string) error {
	s.log.Info(s.log.WithField(ctx, "phone", phone), "auth.otp_issued")
	return nil
}

type Service struct {
	otp        *OTPStore
	sessions   *SessionStore
	users      repository.Users
	sender     CodeSender
	codeLength int
	log        *logger.Logger
}

func NewService(otp *OTPStore, sessions *SessionStore, users repository.Users, sender CodeSender, codeLength int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{otp: otp, sessions: sessions, users: users, sender: sender, codeLength: codeLength, log: log}
}

func (s *Service) RequestCode(ctx context.Context, phone string) error {
	if err := validation.Phone(phone); err != nil {
		return err
	}
	code, err := GenerateCode(s.codeLength)
	if err != nil {
		return err
	}
	if err := s.otp.Save(ctx, phone, code); err != nil {
		return err
	}
	return s.sender.Send(ctx, phone, code)
}

// VerifyCode consumes the code, signs the user up on first use and opens a session.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (*Session, *models.User, error) {
	if err := validation.Phone(phone); err != nil {
		return nil, nil, err
	}
	if err := s.otp.Verify(ctx, phone, code); err != nil {
		s.log.Warn(s.log.WithField(ctx, "phone", phone), "auth.otp_rejected", err)
		return nil, nil, err
	}

	user, err := s.users.FindOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(s.log.WithUserID(ctx, user.ID), "auth.session_opened")
	return session, user, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Resolve(ctx, token)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
