package keys

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
	"stockbot/src/repository"
)

var ErrMissingInput = errors.New("user name, key and secret are required")

type userStore interface {
	GetUserByUserName(ctx context.Context, userName string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

type settingStore interface {
	GetByUserID(ctx context.Context, userID uint) (*model.UserSetting, error)
	Create(ctx context.Context, setting *model.UserSetting) error
	ApplyUpdate(ctx context.Context, userID uint, payload model.UpdateUserSettingPayload) (*model.UserSetting, error)
}

// Input is one set-keys invocation. PositionSize and Paper are only applied
// when set.
type Input struct {
	UserName     string
	APIKey       string
	APISecret    string
	PositionSize *float64
	Paper        *bool
}

// SetKeys stores a user's Alpaca credentials, creating the user and a
// disabled settings row on first use.
type SetKeys struct {
	Log      *logger.Entry
	Users    userStore
	Settings settingStore
	Config   Config
}

func (s *SetKeys) Start(ctx context.Context, in Input) (*model.UserSetting, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	if in.UserName == "" || in.APIKey == "" || in.APISecret == "" {
		return nil, ErrMissingInput
	}
	log := s.Log.WithField("user_name", in.UserName)

	user, err := s.Users.GetUserByUserName(ctx, in.UserName)
	if errors.Is(err, repository.ErrUserNotFound) {
		user = &model.User{UserName: in.UserName}
		if err := s.Users.Create(ctx, user); err != nil {
			log.WithError(err).Error("Failed to create user")
			return nil, err
		}
		log.WithField("user_id", user.ID).Info("User created")
	} else if err != nil {
		log.WithError(err).Error("Failed to load user")
		return nil, err
	}

	if _, err := s.Settings.GetByUserID(ctx, user.ID); errors.Is(err, repository.ErrSettingsNotFound) {
		if err := s.Settings.Create(ctx, &model.UserSetting{
			UserID:       user.ID,
			PositionSize: s.Config.DefaultPositionSize,
			Paper:        s.Config.DefaultPaper,
		}); err != nil {
			log.WithError(err).Error("Failed to create settings")
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	setting, err := s.Settings.ApplyUpdate(ctx, user.ID, model.UpdateUserSettingPayload{
		APIKey:       &in.APIKey,
		APISecret:    &in.APISecret,
		PositionSize: in.PositionSize,
		Paper:        in.Paper,
	})
	if err != nil {
		log.WithError(err).Error("Failed to store keys")
		return nil, err
	}

	log.WithFields(logger.Fields{
		"user_id": user.ID,
		"paper":   setting.Paper,
	}).Info("Keys stored")
	return setting, nil
}
