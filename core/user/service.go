package user

import (
	"context"
	"fmt"
	"image"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/face"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		// UpdateUser persists non-zero fields; PasswordHash is only written
		// when set.
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// SetFaceTemplate overwrites the stored enrollment template entirely;
		// templates are never merged across enrollments.
		SetFaceTemplate(ctx context.Context, id string, tmpl face.Descriptor) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo      Repository
		extractor *face.Extractor
		mailSvc   core.EmailService
		conf      *core.Config
		validate  *validator.Validate
	}
)

func NewService(
	repo Repository,
	extractor *face.Extractor,
	mailSvc core.EmailService,
	conf *core.Config,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:      repo,
		extractor: extractor,
		mailSvc:   mailSvc,
		conf:      conf,
		validate:  validate,
	}
}

func (svc *Service) checkUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:          uuid.New().String(),
		Email:       nu.Email,
		Name:        nu.Name,
		Role:        nu.Role,
		Phone:       nu.Phone,
		ParentPhone: nu.ParentPhone,
		ParentEmail: nu.ParentEmail,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:          id,
		Email:       uu.Email,
		Name:        uu.Name,
		Role:        uu.Role,
		Phone:       uu.Phone,
		ParentPhone: uu.ParentPhone,
		ParentEmail: uu.ParentEmail,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete removes users; class enrollments are cascaded by the store.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	return svc.repo.SetLastLogin(ctx, usr)
}

// EnrollFace builds an enrollment template from the given frames and stores
// it, replacing any previous template for this user. It returns the number
// of frames that contributed. face.ErrNoFaceDetected is returned when no
// frame contains a usable face.
func (svc *Service) EnrollFace(ctx context.Context, userID string, images []image.Image) (int, error) {
	if _, err := svc.repo.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	tmpl, n, err := svc.extractor.BuildTemplate(images)
	if err != nil {
		return 0, err
	}
	if err = svc.repo.SetFaceTemplate(ctx, userID, tmpl); err != nil {
		return 0, errors.Wrap(err, "storing face template")
	}
	return n, nil
}

// RequestPasswordReset emails a reset link to the user; ErrNotFound when the
// email is unknown (callers should not reveal that to API clients).
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := svc.MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password Reset",
		Body: fmt.Sprintf(
			"Hi %s,\n\nFollow this link to reset your %s password:\n%s\n\n"+
				"If you did not request a reset, you can safely ignore this email.",
			usr.Name, svc.conf.AppName, url,
		),
	})
	return nil
}

// ResetPassword sets a new password after verifying the emailed token.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	if err = svc.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

// ChangePassword sets a new password after checking the current one.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return core.NewValidationError(
			errors.New("invalid password"),
			core.FieldError{Field: "current_password", Error: "invalid password"},
		)
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}
