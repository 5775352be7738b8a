// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/sablecast/sable/internal/models"
	"github.com/sablecast/sable/internal/session"
	"github.com/sablecast/sable/internal/validation"
)

// SessionManager is the slice of the session core the HTTP surface drives.
// *session.Manager satisfies it; tests substitute a fake.
type SessionManager interface {
	AuthenticateNewSession(ctx context.Context, request *models.AuthenticationRequest) (*models.AuthenticationResult, error)
	Logout(ctx context.Context, accessToken string) error
	Sessions() []models.SessionInfo
	ReportCapabilities(ctx context.Context, sessionID string, caps *models.ClientCapabilities, saveCapabilities bool) error
	ReportNowViewingItem(ctx context.Context, sessionID, itemID string) error
	AddAdditionalUser(ctx context.Context, sessionID, userID string) error
	RemoveAdditionalUser(ctx context.Context, sessionID, userID string) error

	OnPlaybackStart(ctx context.Context, info *models.PlaybackStartInfo) error
	OnPlaybackProgress(ctx context.Context, info *models.PlaybackProgressInfo, isAutomated bool) error
	OnPlaybackStopped(ctx context.Context, info *models.PlaybackStopInfo) error

	SendGeneralCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.GeneralCommand) error
	SendPlaystateCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.PlaystateRequest) error
	SendMessageCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.MessageCommand) error
	SendBrowseCommand(ctx context.Context, controllingSessionID, targetSessionID string, cmd *models.BrowseRequest) error
	SendPlayCommand(ctx context.Context, controllingSessionID, targetSessionID string, request *models.PlayRequest) error
}

var _ SessionManager = (*session.Manager)(nil)

// Handler implements the HTTP endpoints.
type Handler struct {
	manager SessionManager
}

// NewHandler creates the endpoint handler set.
func NewHandler(manager SessionManager) *Handler {
	return &Handler{manager: manager}
}

// decodeBody decodes and validates a JSON request body.
func decodeBody(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "healthy"})
}

// AuthenticateByName handles POST /Users/AuthenticateByName.
func (h *Handler) AuthenticateByName(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.AuthenticationRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if req.RemoteEndPoint == "" {
		req.RemoteEndPoint = remoteAddr(r)
	}

	result, err := h.manager.AuthenticateNewSession(r.Context(), &req)
	if err != nil {
		if errors.Is(err, session.ErrSecurityDenied) {
			rw.Unauthorized("invalid username or password")
			return
		}
		writeSessionError(rw, err)
		return
	}
	rw.Success(result)
}

// Logout handles POST /Sessions/Logout. It revokes the token the request
// authenticated with and ends the device's sessions.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.manager.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// Sessions handles GET /Sessions. The deviceId query parameter narrows the
// list to one device.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	all := h.manager.Sessions()

	if deviceID := r.URL.Query().Get("deviceId"); deviceID != "" {
		filtered := all[:0]
		for _, info := range all {
			if strings.EqualFold(info.DeviceID, deviceID) {
				filtered = append(filtered, info)
			}
		}
		all = filtered
	}

	NewResponseWriter(w, r).Success(all)
}

// targetSessionID returns the session the request operates on: the id query
// parameter when present, otherwise the caller's own session.
func (h *Handler) targetSessionID(r *http.Request) string {
	if id := r.URL.Query().Get("id"); id != "" {
		return id
	}
	if sess := sessionFromContext(r.Context()); sess != nil {
		return sess.ID()
	}
	return ""
}

// CapabilitiesFull handles POST /Sessions/Capabilities/Full with a complete
// capabilities document in the body.
func (h *Handler) CapabilitiesFull(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var caps models.ClientCapabilities
	if !decodeBody(rw, r, &caps) {
		return
	}

	if err := h.manager.ReportCapabilities(r.Context(), h.targetSessionID(r), &caps, true); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// Capabilities handles POST /Sessions/Capabilities with the partial
// query-parameter form.
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	caps := &models.ClientCapabilities{
		PlayableMediaTypes:           splitList(q.Get("playableMediaTypes")),
		SupportedCommands:            splitList(q.Get("supportedCommands")),
		SupportsMediaControl:         q.Get("supportsMediaControl") == "true",
		SupportsPersistentIdentifier: q.Get("supportsPersistentIdentifier") == "true",
	}

	if err := h.manager.ReportCapabilities(r.Context(), h.targetSessionID(r), caps, true); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// PlayingStart handles POST /Sessions/Playing.
func (h *Handler) PlayingStart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var info models.PlaybackStartInfo
	if !h.decodePlaybackReport(rw, r, &info) {
		return
	}
	if err := h.manager.OnPlaybackStart(r.Context(), &info); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// PlayingProgress handles POST /Sessions/Playing/Progress.
func (h *Handler) PlayingProgress(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var info models.PlaybackProgressInfo
	if !h.decodePlaybackReport(rw, r, &info) {
		return
	}
	if err := h.manager.OnPlaybackProgress(r.Context(), &info, false); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// PlayingStopped handles POST /Sessions/Playing/Stopped.
func (h *Handler) PlayingStopped(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var info models.PlaybackStopInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return
	}
	if info.SessionID == "" {
		if sess := sessionFromContext(r.Context()); sess != nil {
			info.SessionID = sess.ID()
		}
	}
	if verr := validation.ValidateStruct(&info); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if err := h.manager.OnPlaybackStopped(r.Context(), &info); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// PlayingPing handles POST /Sessions/Playing/Ping. It re-reports the
// session's current playback state so the check-in clock advances without
// the client resending a full progress document.
func (h *Handler) PlayingPing(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sess := sessionFromContext(r.Context())
	if sess == nil {
		rw.Unauthorized("missing access token")
		return
	}

	ps := sess.PlayStateSnapshot()
	info := &models.PlaybackProgressInfo{
		SessionID:           sess.ID(),
		MediaSourceID:       ps.MediaSourceID,
		IsPaused:            ps.IsPaused,
		CanSeek:             ps.CanSeek,
		IsMuted:             ps.IsMuted,
		PositionTicks:       ps.PositionTicks,
		VolumeLevel:         ps.VolumeLevel,
		AudioStreamIndex:    ps.AudioStreamIndex,
		SubtitleStreamIndex: ps.SubtitleStreamIndex,
		PlayMethod:          ps.PlayMethod,
		RepeatMode:          ps.RepeatMode,
	}
	if dto, _ := sess.NowPlaying(); dto != nil {
		info.ItemID = dto.ID
	}

	if err := h.manager.OnPlaybackProgress(r.Context(), info, false); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// decodePlaybackReport decodes a start/progress body, defaulting the
// session id to the caller's own session.
func (h *Handler) decodePlaybackReport(rw *ResponseWriter, r *http.Request, info *models.PlaybackStartInfo) bool {
	if err := json.NewDecoder(r.Body).Decode(info); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if info.SessionID == "" {
		if sess := sessionFromContext(r.Context()); sess != nil {
			info.SessionID = sess.ID()
		}
	}
	if verr := validation.ValidateStruct(info); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// Command handles POST /Sessions/{sessionId}/Command with a general command
// document in the body.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var cmd models.GeneralCommand
	if !decodeBody(rw, r, &cmd) {
		return
	}
	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendGeneralCommand(ctx, controlling, target, &cmd)
	})
}

// CommandByName handles POST /Sessions/{sessionId}/Command/{name} for
// argument-free commands.
func (h *Handler) CommandByName(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	cmd := models.GeneralCommand{Name: chi.URLParam(r, "name")}
	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendGeneralCommand(ctx, controlling, target, &cmd)
	})
}

// Playstate handles POST /Sessions/{sessionId}/Playing/{command}.
func (h *Handler) Playstate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	cmd := models.PlaystateRequest{
		Command:           models.PlaystateCommand(chi.URLParam(r, "command")),
		ControllingUserID: r.URL.Query().Get("controllingUserId"),
	}
	if raw := r.URL.Query().Get("seekPositionTicks"); raw != "" {
		ticks, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			rw.BadRequest("seekPositionTicks must be an integer")
			return
		}
		cmd.SeekPositionTicks = &ticks
	}

	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendPlaystateCommand(ctx, controlling, target, &cmd)
	})
}

// Play handles POST /Sessions/{sessionId}/Playing with a play request body.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.PlayRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendPlayCommand(ctx, controlling, target, &req)
	})
}

// Message handles POST /Sessions/{sessionId}/Message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var cmd models.MessageCommand
	if !decodeBody(rw, r, &cmd) {
		return
	}
	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendMessageCommand(ctx, controlling, target, &cmd)
	})
}

// Browse handles POST /Sessions/{sessionId}/Viewing, asking the target
// session to display an item.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.BrowseRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	h.dispatch(rw, r, func(ctx context.Context, controlling, target string) error {
		return h.manager.SendBrowseCommand(ctx, controlling, target, &req)
	})
}

// dispatch runs a remote-control send against the {sessionId} target on
// behalf of the caller's session.
func (h *Handler) dispatch(rw *ResponseWriter, r *http.Request, send func(ctx context.Context, controlling, target string) error) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		rw.Unauthorized("missing access token")
		return
	}

	target := chi.URLParam(r, "sessionId")
	if err := send(r.Context(), sess.ID(), target); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// Viewing handles POST /Sessions/Viewing, reporting what the caller's own
// session is browsing.
func (h *Handler) Viewing(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sess := sessionFromContext(r.Context())
	if sess == nil {
		rw.Unauthorized("missing access token")
		return
	}

	itemID := r.URL.Query().Get("itemId")
	if itemID == "" {
		rw.BadRequest("itemId is required")
		return
	}

	if err := h.manager.ReportNowViewingItem(r.Context(), sess.ID(), itemID); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// AddUser handles POST /Sessions/{sessionId}/User/{userId}.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.manager.AddAdditionalUser(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "userId")); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// RemoveUser handles DELETE /Sessions/{sessionId}/User/{userId}.
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.manager.RemoveAdditionalUser(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "userId")); err != nil {
		writeSessionError(rw, err)
		return
	}
	rw.NoContent()
}

// splitList splits a comma-separated query value, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
