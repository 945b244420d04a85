package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/store"
	"github.com/hrygo/macagent/store/db/file"
	"github.com/hrygo/macagent/store/db/sqlite"
)

// NewDBDriver creates the session storage driver selected by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "file", "":
		driver, err = file.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'file' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
