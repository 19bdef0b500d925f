// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/formflow/internal/batch"
	"github.com/pdiddy/formflow/internal/history"
	"github.com/pdiddy/formflow/internal/pdfservices"
	"github.com/pdiddy/formflow/internal/secrets"
	"github.com/pdiddy/formflow/pkg/types"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = pdfservices.DefaultPollInterval
	defaultPollTimeout  = 10 * time.Minute
)

func serviceConfig() types.ServiceConfig {
	return types.ServiceConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("timeout"),
			UserAgent: "formflow/" + version,
		},
		AuthURL:       viper.GetString("auth_url"),
		AssetsURL:     viper.GetString("assets_url"),
		OperationsURL: viper.GetString("operations_url"),
	}
}

func pollConfig() types.PollConfig {
	return types.PollConfig{
		Interval:    viper.GetDuration("poll_interval"),
		MaxWait:     viper.GetDuration("poll_timeout"),
		MaxAttempts: viper.GetInt("poll_max_attempts"),
	}
}

func historyConfig() types.HistoryConfig {
	return types.HistoryConfig{
		Dir:      viper.GetString("history_dir"),
		Disabled: viper.GetBool("no_history"),
	}
}

// credentials resolves the client credentials: flags, config file and
// environment first, then the secrets directory.
func credentials(loaded map[string]string) types.Credentials {
	return secrets.Fill(types.Credentials{
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
	}, loaded)
}

// newRunner wires the service client, poller and history store into a
// batch runner. The returned func closes the history store.
func newRunner(progress io.Writer) (*batch.Runner, func(), error) {
	client := pdfservices.NewClient(pdfservices.Options{
		Service: serviceConfig(),
		Logger:  &logger,
	})
	opts := batch.Options{
		Service:     client,
		Poller:      pdfservices.NewPoller(client, pollConfig()),
		Credentials: credentials(loadedSecrets),
		Progress:    progress,
		Logger:      &logger,
	}

	closeFn := func() {}
	if hc := historyConfig(); !hc.Disabled {
		store, err := history.Open(hc.Dir)
		if err != nil {
			return nil, nil, err
		}
		opts.Recorder = store
		closeFn = func() { store.Close() }
	}
	return batch.NewRunner(opts), closeFn, nil
}
