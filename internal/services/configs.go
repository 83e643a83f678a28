package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/coalesce"
	"estoquefacil/internal/models"
)

var configTypePattern = regexp.MustCompile(`^[a-z0-9_.\-]{1,64}$`)

const maxConfigPayload = 256 << 10

// Configs persists per-account JSON configuration blobs. Saves for the same
// (account, type) run one after another in the order they were issued.
type Configs struct {
	store      ConfigStore
	serializer coalesce.Serializer
	activity   activity.Recorder
}

func configKey(accountID, configType string) string {
	return accountID + ":" + configType
}

func (c *Configs) Save(ctx context.Context, accountID, configType string, payload json.RawMessage) (models.UserConfiguration, error) {
	if !configTypePattern.MatchString(configType) {
		return models.UserConfiguration{}, invalid("config_type", "must match %s", configTypePattern.String())
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return models.UserConfiguration{}, invalid("payload", "must be valid JSON")
	}
	if len(payload) > maxConfigPayload {
		return models.UserConfiguration{}, invalid("payload", "exceeds %d bytes", maxConfigPayload)
	}

	var (
		saved models.UserConfiguration
		ran   bool
	)
	err := c.serializer.Do(ctx, configKey(accountID, configType), func(ctx context.Context) error {
		ran = true
		var err error
		saved, err = c.store.UpsertConfiguration(ctx, models.UserConfiguration{
			AccountID:  accountID,
			ConfigType: configType,
			Payload:    payload,
		})
		return err
	})
	if err != nil {
		if (!ran && ctx.Err() == nil) || errors.Is(err, coalesce.ErrLockLost) {
			return models.UserConfiguration{}, &RemoteError{Service: "redis", Op: "acquire config lock", Err: err}
		}
		return models.UserConfiguration{}, err
	}
	c.activity.Record(ctx, models.ActivityEntry{
		AccountID:  accountID,
		Action:     activity.ActionConfigSaved,
		EntityType: "user_configuration",
		EntityID:   configType,
	})
	return saved, nil
}

func (c *Configs) Get(ctx context.Context, accountID, configType string) (models.UserConfiguration, error) {
	return c.store.GetConfiguration(ctx, accountID, configType)
}

func (c *Configs) List(ctx context.Context, accountID string) ([]models.UserConfiguration, error) {
	return c.store.ListConfigurations(ctx, accountID)
}
