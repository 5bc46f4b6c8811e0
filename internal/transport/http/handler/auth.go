package handler

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/application/onboarding"
	"github.com/atelier-api/internal/application/session"
	"github.com/atelier-api/internal/domain"
)

const maxUploadBytes = 10 << 20

// AttemptLimiter caps code attempts per contact.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// AuthHandler serves registration, verification, login and password reset.
type AuthHandler struct {
	onboarding onboarding.Service
	sessions   session.Service
	attempts   AttemptLimiter
	cookies    SessionCookies
}

func NewAuthHandler(ob onboarding.Service, sessions session.Service, attempts AttemptLimiter, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{onboarding: ob, sessions: sessions, attempts: attempts, cookies: cookies}
}

type verifyRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

type contactRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

func (h *AuthHandler) RegisterEmail(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, domain.ChannelEmail)
}

func (h *AuthHandler) RegisterNumber(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, domain.ChannelPhone)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, ch domain.Channel) {
	req, closeFile, err := decodeRegistration(w, r)
	if err != nil {
		httpError(w, r, err)
		return
	}
	defer closeFile()
	req.Channel = ch

	issued, err := h.onboarding.RequestRegistration(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issuedEnvelope(issued))
}

// decodeRegistration accepts JSON or a multipart form carrying an optional "file".
func decodeRegistration(w http.ResponseWriter, r *http.Request) (onboarding.RegistrationRequest, func(), error) {
	var req onboarding.RegistrationRequest
	noop := func() {}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, noop, decodeJSON(r, &req)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, noop, badBody
	}
	req.Name = r.FormValue("name")
	req.Email = r.FormValue("email")
	req.PhoneNumber = r.FormValue("phone_number")
	req.Password = r.FormValue("password")
	req.Role = r.FormValue("role")

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return req, noop, nil
	}
	if err != nil {
		return req, noop, badBody
	}
	req.Asset = assetFrom(file, header)
	return req, func() { file.Close() }, nil
}

func assetFrom(f multipart.File, h *multipart.FileHeader) *media.Asset {
	return &media.Asset{Reader: f, Filename: h.Filename, ContentType: h.Header.Get("Content-Type")}
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, domain.ChannelEmail)
}

func (h *AuthHandler) VerifyNumber(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, domain.ChannelPhone)
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, ch domain.Channel) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	contact := domain.EmailContact(req.Email)
	if ch == domain.ChannelPhone {
		contact = domain.PhoneContact(req.PhoneNumber)
	}
	if !h.allow(r.Context(), contact) {
		httpError(w, r, domain.ErrTooManyRequests)
		return
	}

	out, err := h.onboarding.Verify(r.Context(), contact, strings.TrimSpace(req.OTP))
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.set(w, out.Token)
	status := http.StatusOK
	if out.Onboarded {
		status = http.StatusCreated
	}
	writeJSON(w, status, AuthEnvelope{
		Message:   "verified",
		Account:   out.Account,
		Satellite: out.Satellite,
		Onboarded: out.Onboarded,
	})
}

// allow fails open when the limiter backend is unavailable.
func (h *AuthHandler) allow(ctx context.Context, c domain.Contact) bool {
	if h.attempts == nil {
		return true
	}
	ok, err := h.attempts.Allow(ctx, c.String())
	if err != nil {
		slog.WarnContext(ctx, "verify attempt limiter unavailable", "err", err)
		return true
	}
	return ok
}

func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	contact := domain.EmailContact(req.Email)
	if req.Email == "" {
		contact = domain.PhoneContact(req.PhoneNumber)
	}
	issued, err := h.onboarding.ResendCode(r.Context(), contact)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedEnvelope(issued))
}

func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domain.ChannelEmail)
}

func (h *AuthHandler) LoginNumber(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domain.ChannelPhone)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, ch domain.Channel) {
	var req session.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	req.Channel = ch
	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	if res.ChallengeIssued {
		expires := res.ExpiresAt
		writeJSON(w, http.StatusAccepted, AuthEnvelope{
			Message:         "verification code sent",
			ChallengeIssued: true,
			ExpiresAt:       &expires,
		})
		return
	}
	h.cookies.set(w, res.Token)
	writeJSON(w, http.StatusOK, AuthEnvelope{Message: "logged in", Account: res.Account})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req onboarding.PasswordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	issued, err := h.onboarding.RequestPasswordReset(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedEnvelope(issued))
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req onboarding.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, r, err)
		return
	}
	// reset codes draw on the same per-contact budget as verification
	contact := domain.EmailContact(req.Email)
	if req.Email == "" {
		contact = domain.PhoneContact(req.PhoneNumber)
	}
	if !h.allow(r.Context(), contact) {
		httpError(w, r, domain.ErrTooManyRequests)
		return
	}
	out, err := h.onboarding.ResetPassword(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.set(w, out.Token)
	writeJSON(w, http.StatusOK, AuthEnvelope{Message: "password updated", Account: out.Account})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func issuedEnvelope(i *onboarding.Issued) IssuedEnvelope {
	return IssuedEnvelope{
		Message:   "verification code sent",
		Contact:   i.Contact,
		Channel:   i.Channel,
		ExpiresAt: i.ExpiresAt,
	}
}
