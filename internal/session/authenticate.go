// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sablecast/sable/internal/logging"
	"github.com/sablecast/sable/internal/metrics"
	"github.com/sablecast/sable/internal/models"
)

// AuthenticateNewSession authenticates client credentials, mints or reuses
// an access token, and attaches a session for the device.
func (m *Manager) AuthenticateNewSession(ctx context.Context, request *models.AuthenticationRequest) (*models.AuthenticationResult, error) {
	return m.authenticateNewSessionInternal(ctx, request, true)
}

// CreateNewSession attaches a session for an already-trusted caller without
// enforcing the password.
func (m *Manager) CreateNewSession(ctx context.Context, request *models.AuthenticationRequest) (*models.AuthenticationResult, error) {
	return m.authenticateNewSessionInternal(ctx, request, false)
}

func (m *Manager) authenticateNewSessionInternal(ctx context.Context, request *models.AuthenticationRequest, enforcePassword bool) (*models.AuthenticationResult, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: authentication request is nil", ErrInvalidArgument)
	}

	user, err := m.resolveRequestUser(ctx, request)
	if err != nil {
		return nil, err
	}

	if user != nil {
		if !user.IsParentalScheduleAllowed(m.deps.Clock.Now()) {
			metrics.AuthAttemptsTotal.WithLabelValues("denied").Inc()
			return nil, fmt.Errorf("%w: user is not allowed access at this time", ErrSecurityDenied)
		}
		if !m.deps.DeviceManager.CanAccessDevice(user, request.DeviceID) {
			metrics.AuthAttemptsTotal.WithLabelValues("denied").Inc()
			return nil, fmt.Errorf("%w: user is not allowed access from this device", ErrSecurityDenied)
		}
	}

	if enforcePassword {
		authenticated, err := m.deps.UserManager.AuthenticateUser(ctx,
			request.Username, request.Password, request.PasswordSha1, request.PasswordMd5,
			request.RemoteEndPoint, true)
		if err != nil {
			return nil, err
		}
		if authenticated == nil {
			metrics.AuthAttemptsTotal.WithLabelValues("failed").Inc()
			m.deps.Events.PublishAuthenticationFailed(request)
			return nil, fmt.Errorf("%w: invalid username or password", ErrSecurityDenied)
		}
		user = authenticated
	}
	if user == nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failed").Inc()
		m.deps.Events.PublishAuthenticationFailed(request)
		return nil, fmt.Errorf("%w: user not found", ErrSecurityDenied)
	}

	token, err := m.getAuthorizationToken(ctx, user, request)
	if err != nil {
		return nil, err
	}

	sess, err := m.LogSessionActivity(ctx, request.App, request.AppVersion, request.DeviceID, request.DeviceName, request.RemoteEndPoint, user)
	if err != nil {
		return nil, err
	}

	snapshot := sess.Snapshot()
	result := &models.AuthenticationResult{
		User:        m.deps.UserManager.GetUserDto(user, request.RemoteEndPoint),
		SessionInfo: &snapshot,
		AccessToken: token,
		ServerID:    m.cfg.ServerID,
	}

	metrics.AuthAttemptsTotal.WithLabelValues("succeeded").Inc()
	m.deps.Events.PublishAuthenticationSucceeded(result)
	return result, nil
}

// resolveRequestUser finds the user by id when given, by case-insensitive
// name otherwise.
func (m *Manager) resolveRequestUser(ctx context.Context, request *models.AuthenticationRequest) (*models.User, error) {
	if request.UserID != "" {
		return m.deps.UserManager.GetUserByID(ctx, request.UserID)
	}
	if request.Username != "" {
		return m.deps.UserManager.GetUserByName(ctx, request.Username)
	}
	return nil, nil
}

// getAuthorizationToken reuses the device's active token for the user when
// one exists; otherwise it mints and persists a fresh opaque token.
func (m *Manager) getAuthorizationToken(ctx context.Context, user *models.User, request *models.AuthenticationRequest) (string, error) {
	active := true
	existing, err := m.deps.AuthRepo.Get(ctx, models.AuthenticationInfoQuery{
		DeviceID: request.DeviceID,
		UserID:   user.ID,
		IsActive: &active,
		Limit:    1,
	})
	if err != nil {
		return "", err
	}
	if len(existing.Items) > 0 {
		return existing.Items[0].AccessToken, nil
	}

	info := &models.AuthenticationInfo{
		ID:          uuid.NewString(),
		AccessToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		DeviceID:    request.DeviceID,
		DeviceName:  request.DeviceName,
		AppName:     request.App,
		AppVersion:  request.AppVersion,
		UserID:      user.ID,
		UserName:    user.Name,
		IsActive:    true,
		DateCreated: m.deps.Clock.Now(),
	}
	if err := m.deps.AuthRepo.Create(ctx, info); err != nil {
		return "", err
	}
	metrics.TokensIssuedTotal.Inc()
	return info.AccessToken, nil
}

// Logout revokes the access token and terminates every session on the
// token's device.
func (m *Manager) Logout(ctx context.Context, accessToken string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if accessToken == "" {
		return fmt.Errorf("%w: access token must not be empty", ErrInvalidArgument)
	}

	result, err := m.deps.AuthRepo.Get(ctx, models.AuthenticationInfoQuery{
		AccessToken: accessToken,
		Limit:       1,
	})
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, accessToken)
	}

	info := result.Items[0]
	info.IsActive = false
	revoked := m.deps.Clock.Now()
	info.DateRevoked = &revoked
	if err := m.deps.AuthRepo.Update(ctx, info); err != nil {
		return err
	}
	metrics.TokensRevokedTotal.Inc()

	for _, sess := range m.registry.ByDeviceID(info.DeviceID) {
		if err := m.ReportSessionEnded(ctx, sess.ID()); err != nil {
			logging.Error().Err(err).Str("session_id", sess.ID()).Msg("failed to end session on logout")
		}
	}
	return nil
}

// RevokeUserTokens logs out every active token of the user except the one
// currently in use.
func (m *Manager) RevokeUserTokens(ctx context.Context, userID, currentAccessToken string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}

	active := true
	result, err := m.deps.AuthRepo.Get(ctx, models.AuthenticationInfoQuery{
		UserID:   userID,
		IsActive: &active,
	})
	if err != nil {
		return err
	}

	for _, info := range result.Items {
		if info.AccessToken == currentAccessToken {
			continue
		}
		if err := m.Logout(ctx, info.AccessToken); err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("failed to revoke token")
		}
	}
	return nil
}

// GetSessionByAuthenticationToken resolves a live session from an access
// token, refreshing its activity on the way. The API layer uses this to
// attach request context.
func (m *Manager) GetSessionByAuthenticationToken(ctx context.Context, accessToken, remoteEndPoint, appVersion string) (*Session, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}

	active := true
	result, err := m.deps.AuthRepo.Get(ctx, models.AuthenticationInfoQuery{
		AccessToken: accessToken,
		IsActive:    &active,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, accessToken)
	}
	info := result.Items[0]

	var user *models.User
	if info.UserID != "" {
		user, err = m.deps.UserManager.GetUserByID(ctx, info.UserID)
		if err != nil {
			return nil, err
		}
	}

	version := appVersion
	if version == "" {
		version = info.AppVersion
	}
	return m.LogSessionActivity(ctx, info.AppName, version, info.DeviceID, info.DeviceName, remoteEndPoint, user)
}
