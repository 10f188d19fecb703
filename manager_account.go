package auth

import (
	"context"
)

// SignUp registers a new account. Input is validated locally first and the
// provider is not called when it fails. A failed sign up only sets the error
// message. When the provider requires a confirmation code a session that is
// not signed in moves to PendingConfirmation; a signed in session is kept.
func (m *SessionManager) SignUp(ctx context.Context, input SignUpInput) (SignUpResult, error) {
	if err := input.ValidateWith(m.policy); err != nil {
		m.setError(ctx, err.Error())
		return SignUpResult{}, invalidInput("sign up input is invalid", err)
	}

	release, gen, err := m.beginAttempt(ctx)
	if err != nil {
		return SignUpResult{}, err
	}
	defer release()

	m.clearError(ctx)

	result, err := m.provider.SignUp(ctx, input)
	if err != nil {
		m.logger.Warn("SignUp rejected for %s: %v", input.Username, err)
		m.setError(ctx, ProviderMessage(err))
		return SignUpResult{}, providerRejected(err)
	}

	_ = m.commit(ctx, gen, func(s *session) {
		s.err = ""
		if !result.ConfirmationRequired || s.status == StatusAuthenticated {
			return
		}
		s.clear()
		s.loading = false
		s.status = StatusPendingConfirmation
		s.pendingUsername = input.Username
	})

	m.emit(ctx, ActivityEventSignUp, UserIdentity{UserID: result.UserID, Username: input.Username}, map[string]any{
		"confirmation_required": result.ConfirmationRequired,
		"delivery_medium":       result.Delivery.Medium,
	})

	return result, nil
}

// ConfirmSignUp submits the emailed confirmation code. On success a session
// waiting for confirmation becomes Unauthenticated and the user may sign in.
func (m *SessionManager) ConfirmSignUp(ctx context.Context, username, code string) error {
	if err := m.requireFields(ctx, "username", username, "code", code); err != nil {
		return err
	}

	m.clearError(ctx)

	if err := m.provider.ConfirmSignUp(ctx, username, code); err != nil {
		m.logger.Warn("ConfirmSignUp rejected for %s: %v", username, err)
		m.setError(ctx, ProviderMessage(err))
		return providerRejected(err)
	}

	_ = m.update(ctx, func(s *session) {
		if s.status == StatusPendingConfirmation {
			s.status = StatusUnauthenticated
			s.pendingUsername = ""
		}
		s.err = ""
	})

	m.emit(ctx, ActivityEventSignUpConfirmed, UserIdentity{Username: username}, nil)
	return nil
}

func (m *SessionManager) ResendConfirmationCode(ctx context.Context, username string) (CodeDelivery, error) {
	if err := m.requireFields(ctx, "username", username); err != nil {
		return CodeDelivery{}, err
	}

	m.clearError(ctx)

	delivery, err := m.provider.ResendConfirmationCode(ctx, username)
	if err != nil {
		m.setError(ctx, ProviderMessage(err))
		return CodeDelivery{}, providerRejected(err)
	}
	return delivery, nil
}

// ResetPassword starts the forgot password flow. The session status is left
// untouched.
func (m *SessionManager) ResetPassword(ctx context.Context, username string) (CodeDelivery, error) {
	if err := m.requireFields(ctx, "username", username); err != nil {
		return CodeDelivery{}, err
	}

	m.clearError(ctx)

	delivery, err := m.provider.ResetPassword(ctx, username)
	if err != nil {
		m.logger.Warn("ResetPassword rejected for %s: %v", username, err)
		m.setError(ctx, ProviderMessage(err))
		return CodeDelivery{}, providerRejected(err)
	}

	m.emit(ctx, ActivityEventPasswordResetRequest, UserIdentity{Username: username}, map[string]any{
		"delivery_medium": delivery.Medium,
	})
	return delivery, nil
}

func (m *SessionManager) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	if err := m.requireFields(ctx, "username", username, "code", code, "new_password", newPassword); err != nil {
		return err
	}
	if err := m.policy.Check(newPassword); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return err
	}

	m.clearError(ctx)

	if err := m.provider.ConfirmResetPassword(ctx, username, code, newPassword); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return providerRejected(err)
	}

	m.emit(ctx, ActivityEventPasswordResetSuccess, UserIdentity{Username: username}, nil)
	return nil
}

// UpdatePassword changes the password of the signed in user.
func (m *SessionManager) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	tokens, identity, ok := m.authenticatedTokens()
	if !ok {
		return ErrNotAuthenticated
	}
	if err := m.requireFields(ctx, "old_password", oldPassword, "new_password", newPassword); err != nil {
		return err
	}
	if err := m.policy.Check(newPassword); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return err
	}

	m.clearError(ctx)

	if err := m.provider.UpdatePassword(ctx, tokens, oldPassword, newPassword); err != nil {
		m.setError(ctx, ProviderMessage(err))
		return providerRejected(err)
	}

	m.emit(ctx, ActivityEventPasswordChanged, identity, nil)
	return nil
}

// DeleteUser removes the signed in account. On failure the session stays
// Authenticated with the provider's message.
func (m *SessionManager) DeleteUser(ctx context.Context) error {
	tokens, identity, ok := m.authenticatedTokens()
	if !ok {
		return ErrNotAuthenticated
	}

	m.clearError(ctx)

	if err := m.provider.DeleteUser(ctx, tokens); err != nil {
		m.logger.Error("DeleteUser failed for %s: %v", identity.UserID, err)
		m.setError(ctx, ProviderMessage(err))
		return providerRejected(err)
	}

	_, _, gen := m.invalidate()
	m.clearCredentialsFor(ctx, gen)
	_ = m.commit(ctx, gen, signedOut)

	m.emit(ctx, ActivityEventAccountDeleted, identity, nil)
	return nil
}

func (m *SessionManager) authenticatedTokens() (Tokens, UserIdentity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.status != StatusAuthenticated || m.state.tokens == nil || m.state.identity == nil {
		return Tokens{}, UserIdentity{}, false
	}
	return *m.state.tokens, *m.state.identity, true
}

// requireFields takes name, value pairs.
func (m *SessionManager) requireFields(ctx context.Context, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := requireField(pairs[i], pairs[i+1]); err != nil {
			m.setError(ctx, ProviderMessage(err))
			return err
		}
	}
	return nil
}
