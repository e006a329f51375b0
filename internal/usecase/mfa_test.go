package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

func newMFAFixture(t *testing.T, users ...domain.UserAccount) (*MFAService, *memoryUserRepository, *captureEmailSender, *captureSMSSender) {
	t.Helper()
	repo := newMemoryUserRepository(users...)
	email := &captureEmailSender{}
	sms := &captureSMSSender{}
	svc := NewMFAService(testMFASettings(), repo, testHasher(), email, sms, &captureAuditPublisher{}, time.Second, nopLogger()).
		WithClock(func() time.Time { return fixedNow })
	return svc, repo, email, sms
}

func TestSetupTOTPStoresPendingSecret(t *testing.T) {
	hasher := testHasher()
	svc, repo, _, _ := newMFAFixture(t, activeUser(hasher))

	setup, err := svc.SetupTOTP(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	if setup.Secret == "" {
		t.Error("SetupTOTP() returned empty secret")
	}
	if !strings.HasPrefix(setup.URI, "otpauth://totp/") {
		t.Errorf("URI = %q, want otpauth://totp/ prefix", setup.URI)
	}
	if len(setup.BackupCodes) != 10 {
		t.Errorf("backup codes = %d, want 10", len(setup.BackupCodes))
	}

	stored := repo.stored("user-1")
	if stored.MFAEnabled {
		t.Error("MFA enabled before confirmation")
	}
	if stored.MFASecret == nil || *stored.MFASecret != setup.Secret {
		t.Error("secret not stored on user")
	}
}

func TestSetupTOTPRotatesPendingSecret(t *testing.T) {
	hasher := testHasher()
	svc, _, _, _ := newMFAFixture(t, activeUser(hasher))

	first, err := svc.SetupTOTP(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("first SetupTOTP() error = %v", err)
	}
	second, err := svc.SetupTOTP(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second SetupTOTP() error = %v", err)
	}
	if first.Secret == second.Secret {
		t.Error("pending secret not rotated on repeat setup")
	}
}

func TestSetupTOTPAlreadyEnabled(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	user.MFAEnabled = true
	svc, _, _, _ := newMFAFixture(t, user)

	if _, err := svc.SetupTOTP(context.Background(), "user-1"); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("SetupTOTP() error = %v, want ErrMFAAlreadyEnabled", err)
	}
}

func TestEnableMFAWithValidCode(t *testing.T) {
	hasher := testHasher()
	svc, repo, _, _ := newMFAFixture(t, activeUser(hasher))

	setup, err := svc.SetupTOTP(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	code, err := totp.GenerateCode(setup.Secret, fixedNow)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}

	if err := svc.EnableMFA(context.Background(), "user-1", code); err != nil {
		t.Fatalf("EnableMFA() error = %v", err)
	}
	if !repo.stored("user-1").MFAEnabled {
		t.Error("MFAEnabled not set after confirmation")
	}
}

func TestEnableMFAWrongCode(t *testing.T) {
	hasher := testHasher()
	svc, repo, _, _ := newMFAFixture(t, activeUser(hasher))

	if _, err := svc.SetupTOTP(context.Background(), "user-1"); err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}
	if err := svc.EnableMFA(context.Background(), "user-1", "000000"); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("EnableMFA() error = %v, want ErrInvalidMFACode", err)
	}
	if repo.stored("user-1").MFAEnabled {
		t.Error("MFAEnabled set despite invalid code")
	}
}

func TestEnableMFAWithinSkewWindow(t *testing.T) {
	hasher := testHasher()
	svc, _, _, _ := newMFAFixture(t, activeUser(hasher))

	setup, err := svc.SetupTOTP(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SetupTOTP() error = %v", err)
	}

	// Two steps of drift is inside the configured tolerance.
	code, err := totp.GenerateCode(setup.Secret, fixedNow.Add(-60*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if err := svc.EnableMFA(context.Background(), "user-1", code); err != nil {
		t.Fatalf("EnableMFA() with drifted code error = %v", err)
	}
}

func TestEnableMFAWithoutSetup(t *testing.T) {
	hasher := testHasher()
	svc, _, _, _ := newMFAFixture(t, activeUser(hasher))

	if err := svc.EnableMFA(context.Background(), "user-1", "123456"); !errors.Is(err, ErrMFANotConfigured) {
		t.Fatalf("EnableMFA() error = %v, want ErrMFANotConfigured", err)
	}
}

func TestDisableMFA(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	method := domain.MethodTOTP
	user.MFAEnabled = true
	user.MFASecret = &secret
	user.TwoFactorMethod = &method
	user.MFABackupCodes = []string{"AAAA1111"}
	svc, repo, _, _ := newMFAFixture(t, user)

	if err := svc.DisableMFA(context.Background(), "user-1", "wrong-password"); !errors.Is(err, ErrInvalidCurrentPassword) {
		t.Fatalf("DisableMFA() with wrong password error = %v, want ErrInvalidCurrentPassword", err)
	}

	if err := svc.DisableMFA(context.Background(), "user-1", testPassword); err != nil {
		t.Fatalf("DisableMFA() error = %v", err)
	}
	stored := repo.stored("user-1")
	if stored.MFAEnabled || stored.MFASecret != nil || stored.MFABackupCodes != nil || stored.TwoFactorMethod != nil {
		t.Errorf("MFA state not fully cleared: %+v", stored)
	}
}

func TestVerifyCodeEmailChallengeOneShot(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	method := domain.MethodEmail
	user.MFAEnabled = true
	user.TwoFactorMethod = &method
	svc, repo, email, _ := newMFAFixture(t, user)

	stored := repo.stored("user-1")
	if err := svc.SendChallenge(context.Background(), &stored); err != nil {
		t.Fatalf("SendChallenge() error = %v", err)
	}
	if email.count() != 1 {
		t.Fatalf("challenge emails sent = %d, want 1", email.count())
	}
	code := *repo.stored("user-1").MFAChallengeCode

	valid, err := svc.VerifyCodeForUser(context.Background(), "user-1", code)
	if err != nil {
		t.Fatalf("VerifyCodeForUser() error = %v", err)
	}
	if !valid {
		t.Fatal("challenge code rejected")
	}
	if repo.stored("user-1").MFAChallengeCode != nil {
		t.Error("challenge code not cleared on success")
	}

	// Consumed challenge must not verify again.
	valid, err = svc.VerifyCodeForUser(context.Background(), "user-1", code)
	if err != nil {
		t.Fatalf("second VerifyCodeForUser() error = %v", err)
	}
	if valid {
		t.Error("consumed challenge code accepted twice")
	}
}

func TestVerifyCodeExpiredChallenge(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	method := domain.MethodSMS
	code := "654321"
	expired := fixedNow.Add(-time.Minute)
	user.MFAEnabled = true
	user.TwoFactorMethod = &method
	user.MFAChallengeCode = &code
	user.MFAChallengeExpires = &expired
	svc, _, _, _ := newMFAFixture(t, user)

	valid, err := svc.VerifyCodeForUser(context.Background(), "user-1", code)
	if err != nil {
		t.Fatalf("VerifyCodeForUser() error = %v", err)
	}
	if valid {
		t.Error("expired challenge code accepted")
	}
}

func TestSendChallengeSMS(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	phone := "+15551230000"
	method := domain.MethodSMS
	user.MFAEnabled = true
	user.TwoFactorMethod = &method
	user.PhoneNumber = &phone
	svc, repo, _, sms := newMFAFixture(t, user)

	stored := repo.stored("user-1")
	if err := svc.SendChallenge(context.Background(), &stored); err != nil {
		t.Fatalf("SendChallenge() error = %v", err)
	}
	if len(sms.codes) != 1 {
		t.Fatalf("sms codes sent = %d, want 1", len(sms.codes))
	}
	if got := *repo.stored("user-1").MFAChallengeCode; got != sms.codes[0] {
		t.Errorf("stored challenge %q differs from dispatched %q", got, sms.codes[0])
	}
}

func TestSendChallengeRejectsTOTPMethod(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	user.MFAEnabled = true
	user.MFASecret = &secret
	svc, _, _, _ := newMFAFixture(t, user)

	stored := user
	if err := svc.SendChallenge(context.Background(), &stored); !errors.Is(err, ErrInvalidMFAMethod) {
		t.Fatalf("SendChallenge() error = %v, want ErrInvalidMFAMethod", err)
	}
}

func TestVerifyBackupCodeSingleUse(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	user.MFAEnabled = true
	user.MFABackupCodes = []string{"AAAA1111", "BBBB2222", "CCCC3333"}
	svc, repo, _, _ := newMFAFixture(t, user)

	valid, err := svc.VerifyBackupCodeForUser(context.Background(), "user-1", "BBBB2222")
	if err != nil {
		t.Fatalf("VerifyBackupCodeForUser() error = %v", err)
	}
	if !valid {
		t.Fatal("backup code rejected")
	}
	if got := len(repo.stored("user-1").MFABackupCodes); got != 2 {
		t.Errorf("backup codes remaining = %d, want 2", got)
	}

	valid, err = svc.VerifyBackupCodeForUser(context.Background(), "user-1", "BBBB2222")
	if err != nil {
		t.Fatalf("second VerifyBackupCodeForUser() error = %v", err)
	}
	if valid {
		t.Error("consumed backup code accepted twice")
	}
}

func TestVerifyForUserRequiresEnabledMFA(t *testing.T) {
	hasher := testHasher()
	svc, _, _, _ := newMFAFixture(t, activeUser(hasher))

	if _, err := svc.VerifyCodeForUser(context.Background(), "user-1", "123456"); !errors.Is(err, ErrMFANotConfigured) {
		t.Fatalf("VerifyCodeForUser() error = %v, want ErrMFANotConfigured", err)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	user.MFAEnabled = true
	user.MFABackupCodes = []string{"OLD11111"}
	svc, repo, _, _ := newMFAFixture(t, user)

	if _, err := svc.RegenerateBackupCodes(context.Background(), "user-1", "wrong"); !errors.Is(err, ErrInvalidCurrentPassword) {
		t.Fatalf("RegenerateBackupCodes() with wrong password error = %v, want ErrInvalidCurrentPassword", err)
	}

	codes, err := svc.RegenerateBackupCodes(context.Background(), "user-1", testPassword)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes() error = %v", err)
	}
	if len(codes) != 10 {
		t.Errorf("regenerated codes = %d, want 10", len(codes))
	}
	stored := repo.stored("user-1").MFABackupCodes
	for _, c := range stored {
		if c == "OLD11111" {
			t.Error("old backup code survived regeneration")
		}
	}
}

func TestQRCodeWithoutSecret(t *testing.T) {
	hasher := testHasher()
	svc, _, _, _ := newMFAFixture(t, activeUser(hasher))

	if _, err := svc.QRCode(context.Background(), "user-1", 256); !errors.Is(err, ErrMFANotConfigured) {
		t.Fatalf("QRCode() error = %v, want ErrMFANotConfigured", err)
	}
}

func TestQRCodeRendersPNG(t *testing.T) {
	hasher := testHasher()
	user := activeUser(hasher)
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	user.MFASecret = &secret
	svc, _, _, _ := newMFAFixture(t, user)

	png, err := svc.QRCode(context.Background(), "user-1", 256)
	if err != nil {
		t.Fatalf("QRCode() error = %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("QRCode() did not return a PNG image")
	}
}
