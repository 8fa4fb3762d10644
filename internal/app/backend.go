package app

import (
	"fmt"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/config"
	"github.com/rbright/musegen/internal/generate"
	"github.com/rbright/musegen/internal/hub"
	"github.com/rbright/musegen/internal/hub/grpcapi"
	"github.com/rbright/musegen/internal/hub/httpapi"
	"github.com/rbright/musegen/internal/indicator"
	"github.com/rbright/musegen/internal/resolver"
	"github.com/rbright/musegen/internal/session"
	"github.com/rbright/musegen/internal/version"
)

// backend returns the configured remote transport and its release func.
func (r Runner) backend(remote config.RemoteConfig) (hub.Backend, func(), error) {
	if r.Backend != nil {
		return r.Backend, func() {}, nil
	}

	switch remote.Transport {
	case config.TransportGRPC:
		client, err := grpcapi.New(grpcapi.Options{
			Endpoint:  remote.Endpoint,
			UserAgent: version.UserAgent(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("grpc transport: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		client, err := httpapi.New(httpapi.Options{
			Endpoint:  remote.Endpoint,
			Timeout:   remote.Timeout,
			UserAgent: version.UserAgent(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("http transport: %w", err)
		}
		return client, func() {}, nil
	}
}

// stack is the generation chain built for one command or daemon lifetime.
type stack struct {
	resolver   *resolver.Resolver
	controller *session.Controller
	indicator  *indicator.Desktop
}

func newStack(backend hub.Backend, inv invocation) stack {
	remote := inv.cfg.Remote
	res := resolver.New(backend, resolver.Options{
		Token:    remote.Token,
		ModelID:  remote.ModelID,
		Revision: remote.Revision,
		Device:   remote.Device,
		Logger:   inv.logger,
	})
	gen := generate.New(res, generate.Options{
		Signature: remote.CallSignature,
		Logger:    inv.logger,
	})
	ind := indicator.NewDesktop(inv.cfg.App.Notify, inv.logger)

	controller := session.NewController(gen, session.Options{
		Player:          audio.Player{External: inv.cfg.App.Player.Argv},
		Indicator:       ind,
		DefaultSavePath: inv.cfg.App.DefaultSavePath,
		TempPath:        inv.cfg.App.TempFile,
		Logger:          inv.logger,
	})

	return stack{resolver: res, controller: controller, indicator: ind}
}
