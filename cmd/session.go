package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/config"
	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/loader"
	"github.com/conneroisu/pagekit/internal/logging"
	"github.com/conneroisu/pagekit/internal/registry"
	"github.com/conneroisu/pagekit/internal/storage"
	"github.com/conneroisu/pagekit/internal/widgets"
)

// session is one page booted against the loaded configuration.
type session struct {
	cfg     *config.Config
	page    string
	logger  logging.Logger
	store   storage.Store
	manager *registry.Manager
	loader  *loader.Loader
}

func newSession(cfg *config.Config, page string, logOut io.Writer) (*session, error) {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}
	lc.Output = logOut
	logger := logging.NewLogger(lc)

	f, err := os.Open(page)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", page, err)
	}

	var store storage.Store = storage.NewMemoryStore()
	if cfg.Storage.Path != "" {
		fs, err := storage.OpenFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	manager := registry.New(
		registry.WithDocument(doc),
		registry.WithStore(store),
		registry.WithLogger(logger),
	)
	l := loader.New(manager, logger)
	widgets.Install(l)

	return &session{
		cfg:     cfg,
		page:    page,
		logger:  logger,
		store:   store,
		manager: manager,
		loader:  l,
	}, nil
}

func (s *session) boot(ctx context.Context) loader.BootResult {
	critical, secondary := s.cfg.BootRequests()
	return s.loader.Boot(ctx, critical, secondary)
}

// instanceRow is the printable view of one live instance.
type instanceRow struct {
	ID       string `json:"id" yaml:"id"`
	Kind     string `json:"kind" yaml:"kind"`
	State    string `json:"state" yaml:"state"`
	Selector string `json:"selector" yaml:"selector"`
	Group    string `json:"group" yaml:"group"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// rows lists every tracked instance in creation order, including those
// that failed or found no root, tagged with the boot group that asked for
// them. Rebuilt instances keep the group of the one they replaced.
func (s *session) rows(res loader.BootResult) []instanceRow {
	key := func(c component.Component) string {
		return c.Core().Kind().String() + "\x00" + c.Core().Config().Selector
	}
	groups := make(map[string]string)
	for _, c := range res.Secondary {
		groups[key(c)] = "secondary"
	}
	for _, c := range res.Critical {
		groups[key(c)] = "critical"
	}

	comps := s.manager.Instances()
	rows := make([]instanceRow, 0, len(comps))
	for _, c := range comps {
		core := c.Core()
		row := instanceRow{
			ID:       core.ID(),
			Kind:     core.Kind().String(),
			State:    core.State().String(),
			Selector: core.Config().Selector,
			Group:    groups[key(c)],
		}
		if row.Group == "" {
			row.Group = "-"
		}
		if err := core.Err(); err != nil {
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}
