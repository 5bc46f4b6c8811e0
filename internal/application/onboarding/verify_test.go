package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/application/role"
	"github.com/atelier-api/internal/application/session"
	"github.com/atelier-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVerify_ExpertOnboarding(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	issued, err := e.svc.RequestRegistration(ctx, emailRegistration("Ada@Example.com", "expert"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", issued.Contact)
	msg := e.sent.last(t)
	assert.Equal(t, delivery.KindRegistration, msg.Kind)
	assert.Equal(t, "ada@example.com", msg.To)

	e.clock.Advance(time.Minute)
	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), msg.Code)
	require.NoError(t, err)
	assert.True(t, out.Onboarded)
	assert.Equal(t, domain.RoleExpert, out.Account.Role)
	assert.Equal(t, "ada@example.com", out.Account.Email)
	assert.Equal(t, "token-"+out.Account.AccountID+"-expert", out.Token)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(out.Account.PasswordHash), []byte("secret123")))

	sat, ok := e.store.Satellite(out.Account.AccountID)
	require.True(t, ok)
	assert.Equal(t, domain.SatelliteExpert, sat.Kind)
	assert.Equal(t, out.Account.AccountID, sat.Expert.AccountID)
	assert.Equal(t, sat.ID(), out.Account.SatelliteID)

	_, err = e.store.Pending().GetByContact(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, e.published.events, 1)
	assert.Equal(t, domain.EventAccountCreated, e.published.events[0].Type)

	// the same code again now resolves to the account and finds no challenge
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), msg.Code)
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, e.store.SatelliteCount())
}

func TestVerify_RenewalSupersedesOldCode(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "artist"))
	require.NoError(t, err)
	first := e.sent.last(t).Code

	_, err = e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "artist"))
	require.NoError(t, err)
	second := e.sent.last(t).Code
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, e.store.Pending().Count())

	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), first)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)

	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), second)
	require.NoError(t, err)
	assert.Equal(t, domain.SatelliteArtist, out.Satellite.Kind)
}

func TestVerify_ExpiredCodeKeepsPendingRecord(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "user"))
	require.NoError(t, err)
	code := e.sent.last(t).Code

	e.clock.Advance(5*time.Minute + time.Second)
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)

	p, err := e.store.Pending().GetByContact(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, p.OTPCode)
	_, err = e.store.Accounts().GetByContact(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_CodeValidAtExactExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "user"))
	require.NoError(t, err)
	code := e.sent.last(t).Code

	e.clock.Advance(5 * time.Minute)
	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
	require.NoError(t, err)
	assert.Nil(t, out.Satellite)
}

func TestVerify_WrongCodeThenRightCode(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "user"))
	require.NoError(t, err)
	code := e.sent.last(t).Code

	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "99998")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
	assert.NoError(t, err)
}

func TestVerify_NoSubject(t *testing.T) {
	_, err := newEnv(t, false).svc.Verify(context.Background(), domain.EmailContact("ghost@example.com"), "12345")
	assert.ErrorIs(t, err, domain.ErrPendingRegistrationNotFound)
}

func TestVerify_TwoFactorLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	acct := &domain.Account{AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail, Role: domain.RoleUser, TwoFactor: true}
	require.NoError(t, e.store.Accounts().Put(ctx, acct))
	require.NoError(t, e.store.Challenges().Put(ctx, &domain.OtpChallenge{
		Contact: "ada@example.com", Code: "44444", ExpiresAt: e.clock.Now().Add(5 * time.Minute),
	}))

	_, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "55555")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)
	_, err = e.store.Challenges().Get(ctx, "ada@example.com")
	require.NoError(t, err, "a failed attempt must not consume the challenge")

	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "44444")
	require.NoError(t, err)
	assert.False(t, out.Onboarded)
	assert.Equal(t, "acc-1", out.Account.AccountID)
	assert.Equal(t, "token-acc-1-user", out.Token)

	_, err = e.store.Challenges().Get(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, e.store.SatelliteCount())
}

func TestVerify_AccountBranchIgnoresStalePending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Accounts().Put(ctx, &domain.Account{AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail}))
	require.NoError(t, e.store.Pending().Upsert(ctx, &domain.PendingIdentity{
		Contact: "ada@example.com", Channel: domain.ChannelEmail, Purpose: domain.PurposeRegistration,
		OTPCode: "77777", OTPExpiresAt: e.clock.Now().Add(time.Minute),
	}))

	_, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "77777")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	assert.Equal(t, 1, e.store.Pending().Count())
}

func TestVerify_ChallengeWithoutAccountIsIgnored(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Challenges().Put(ctx, &domain.OtpChallenge{
		Contact: "ada@example.com", Code: "44444", ExpiresAt: e.clock.Now().Add(5 * time.Minute),
	}))

	_, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "44444")
	assert.ErrorIs(t, err, domain.ErrPendingRegistrationNotFound)

	ch, err := e.store.Challenges().Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "44444", ch.Code)
	_, err = e.store.Accounts().GetByContact(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_ExpiredChallengeRenewedByLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, e.store.Accounts().Put(ctx, &domain.Account{
		AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail,
		PasswordHash: string(hash), Role: domain.RoleUser, TwoFactor: true,
	}))
	require.NoError(t, e.store.Challenges().Put(ctx, &domain.OtpChallenge{
		Contact: "ada@example.com", Code: "44444", ExpiresAt: e.clock.Now().Add(5 * time.Minute),
	}))

	e.clock.Advance(5*time.Minute + time.Second)
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "44444")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)
	_, err = e.store.Challenges().Get(ctx, "ada@example.com")
	require.NoError(t, err, "an expired challenge stays until renewed")

	login := session.NewService(session.ServiceDeps{
		AccountRepo:   e.store.Accounts(),
		ChallengeRepo: e.store.Challenges(),
		Codes:         &seqCodes{clock: e.clock},
		JWTProvider:   fakeSigner{},
		Dispatcher:    e.sent,
		Now:           e.clock.Now,
	})
	res, err := login.Login(ctx, session.LoginRequest{Channel: domain.ChannelEmail, Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, res.ChallengeIssued)
	fresh := e.sent.last(t).Code
	require.NotEqual(t, "44444", fresh)

	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "44444")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)

	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), fresh)
	require.NoError(t, err)
	assert.Equal(t, "token-acc-1-user", out.Token)
	_, err = e.store.Challenges().Get(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_ConcurrentSubmissionsCreateOneAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "expert"))
	require.NoError(t, err)
	code := e.sent.last(t).Code

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrOTPNotFound), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, e.store.SatelliteCount())
}

func TestVerify_FinalizesStagedMedia(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	req := emailRegistration("ada@example.com", "artist")
	req.Asset = &media.Asset{Reader: strings.NewReader("img"), Filename: "me.png"}

	_, err := e.svc.RequestRegistration(ctx, req)
	require.NoError(t, err)
	p, err := e.store.Pending().GetByContact(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pending/me.png", p.AssetKey)

	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), e.sent.last(t).Code)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.png", out.Account.ProfilePicture)
	assert.Equal(t, []string{"pending/me.png"}, e.media.discarded)
}

func TestRequestRegistration_RenewalDiscardsReplacedMedia(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	first := emailRegistration("ada@example.com", "artist")
	first.Asset = &media.Asset{Reader: strings.NewReader("a"), Filename: "a.png"}
	_, err := e.svc.RequestRegistration(ctx, first)
	require.NoError(t, err)

	// no new picture keeps the staged one
	_, err = e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "artist"))
	require.NoError(t, err)
	assert.Empty(t, e.media.discarded)

	second := emailRegistration("ada@example.com", "artist")
	second.Asset = &media.Asset{Reader: strings.NewReader("b"), Filename: "b.png"}
	_, err = e.svc.RequestRegistration(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"pending/a.png"}, e.media.discarded)

	p, err := e.store.Pending().GetByContact(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pending/b.png", p.AssetKey)
}

func TestVerify_RetryAfterFailedAccountWrite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	objects := newObjectStore()
	e.svc = NewService(ServiceDeps{
		AccountRepo:   e.store.Accounts(),
		PendingRepo:   e.store.Pending(),
		ChallengeRepo: e.store.Challenges(),
		Registrar:     &flakyRegistrar{next: e.store},
		Media:         media.NewService(objects, nil),
		Materializer:  role.NewMaterializer(e.clock.Now),
		Codes:         &seqCodes{clock: e.clock},
		JWTProvider:   fakeSigner{},
		Dispatcher:    e.sent,
		Now:           e.clock.Now,
	})
	req := emailRegistration("ada@example.com", "artist")
	req.Asset = &media.Asset{Reader: strings.NewReader("img"), Filename: "p.png"}
	_, err := e.svc.RequestRegistration(ctx, req)
	require.NoError(t, err)
	code := e.sent.last(t).Code

	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
	assert.EqualError(t, err, "transaction aborted")
	assert.Len(t, objects.keys("pending/"), 1)
	assert.Equal(t, 1, e.store.Pending().Count())

	out, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), code)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Account.ProfilePicture, "mem://profiles/"))
	assert.Empty(t, objects.keys("pending/"))
	assert.Len(t, objects.keys("profiles/"), 1)
}

func TestVerify_MediaFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	req := emailRegistration("ada@example.com", "expert")
	req.Asset = &media.Asset{Reader: strings.NewReader("img"), Filename: "me.png"}
	_, err := e.svc.RequestRegistration(ctx, req)
	require.NoError(t, err)

	e.media.finalizeErr = errors.Join(errors.New("upload timeout"), domain.ErrDependency)
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), e.sent.last(t).Code)
	assert.ErrorIs(t, err, domain.ErrDependency)

	_, err = e.store.Accounts().GetByContact(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, e.store.SatelliteCount())
	assert.Equal(t, 1, e.store.Pending().Count())
}

func TestVerify_UnknownStoredRoleFailsLoudly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Pending().Upsert(ctx, &domain.PendingIdentity{
		Contact: "ada@example.com", Channel: domain.ChannelEmail, Purpose: domain.PurposeRegistration,
		Role: domain.Role("wizard"), OTPCode: "12345", OTPExpiresAt: e.clock.Now().Add(time.Minute),
	}))

	_, err := e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), "12345")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.store.Accounts().GetByContact(ctx, "ada@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_PhoneRegistrationDefaultsToUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	_, err := e.svc.RequestRegistration(ctx, RegistrationRequest{
		Channel: domain.ChannelPhone, Name: "Grace", PhoneNumber: "+15551234567", Password: "secret123",
	})
	require.NoError(t, err)
	msg := e.sent.last(t)
	assert.Equal(t, domain.ChannelPhone, msg.Channel)

	out, err := e.svc.Verify(ctx, domain.PhoneContact("+15551234567"), msg.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, out.Account.Role)
	assert.Equal(t, "+15551234567", out.Account.PhoneNumber)
	assert.Empty(t, out.Account.SatelliteID)

	// the email namespace is untouched by phone identities
	_, err = e.svc.Verify(ctx, domain.EmailContact("grace@example.com"), msg.Code)
	assert.ErrorIs(t, err, domain.ErrPendingRegistrationNotFound)
}

func TestResendCode(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	_, err := e.svc.RequestRegistration(ctx, emailRegistration("ada@example.com", "user"))
	require.NoError(t, err)
	first := e.sent.last(t).Code

	e.clock.Advance(10 * time.Minute)
	issued, err := e.svc.ResendCode(ctx, domain.EmailContact("ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now().Add(5*time.Minute), issued.ExpiresAt)
	second := e.sent.last(t)
	assert.Equal(t, "Ada Lovelace", second.Name)

	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), first)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)
	_, err = e.svc.Verify(ctx, domain.EmailContact("ada@example.com"), second.Code)
	assert.NoError(t, err)
}

func TestResendCode_NothingPending(t *testing.T) {
	_, err := newEnv(t, false).svc.ResendCode(context.Background(), domain.EmailContact("ghost@example.com"))
	assert.ErrorIs(t, err, domain.ErrPendingRegistrationNotFound)
}

func TestResendCode_RegistrationShadowedByAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Accounts().Put(ctx, &domain.Account{AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail}))
	require.NoError(t, e.store.Pending().Upsert(ctx, &domain.PendingIdentity{
		Contact: "ada@example.com", Channel: domain.ChannelEmail, Purpose: domain.PurposeRegistration,
		OTPCode: "77777", OTPExpiresAt: e.clock.Now().Add(time.Minute),
	}))

	_, err := e.svc.ResendCode(ctx, domain.EmailContact("ada@example.com"))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, e.sent.msgs)
	p, err := e.store.Pending().GetByContact(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "77777", p.OTPCode)
}

func TestResendCode_PasswordReset(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Accounts().Put(ctx, &domain.Account{AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail}))
	_, err := e.svc.RequestPasswordReset(ctx, PasswordResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	first := e.sent.last(t).Code

	_, err = e.svc.ResendCode(ctx, domain.EmailContact("ada@example.com"))
	require.NoError(t, err)
	msg := e.sent.last(t)
	assert.Equal(t, delivery.KindPasswordReset, msg.Kind)
	assert.NotEqual(t, first, msg.Code)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	require.NoError(t, e.store.Accounts().Put(ctx, &domain.Account{
		AccountID: "acc-1", Contact: "ada@example.com", Channel: domain.ChannelEmail, Name: "Ada", Role: domain.RoleExpert,
	}))

	_, err := e.svc.RequestPasswordReset(ctx, PasswordResetRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	msg := e.sent.last(t)
	assert.Equal(t, delivery.KindPasswordReset, msg.Kind)
	assert.Equal(t, "Ada", msg.Name)

	_, err = e.svc.ResetPassword(ctx, ResetPasswordRequest{Email: "ada@example.com", OTP: "00000", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredCode)

	out, err := e.svc.ResetPassword(ctx, ResetPasswordRequest{Email: "ada@example.com", OTP: msg.Code, NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, "token-acc-1-expert", out.Token)

	stored, err := e.store.Accounts().GetByContact(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newsecret")))
	assert.Equal(t, 0, e.store.Pending().Count())

	// the reset code is single-use
	_, err = e.svc.ResetPassword(ctx, ResetPasswordRequest{Email: "ada@example.com", OTP: msg.Code, NewPassword: "again123"})
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestPasswordReset_UnknownAccount(t *testing.T) {
	_, err := newEnv(t, false).svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
