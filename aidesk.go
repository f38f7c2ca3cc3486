// Package aidesk wires the multi-module AI workbench together: encrypted
// credential storage, the session store, the generation transport, the
// device-locked license verifier, and the conversation/module controllers.
package aidesk

import (
	"fmt"
	"log"

	"github.com/calebres/aidesk/access"
	"github.com/calebres/aidesk/controllers"
	"github.com/calebres/aidesk/credentials"
	"github.com/calebres/aidesk/models"
	"github.com/calebres/aidesk/stores"
	"github.com/calebres/aidesk/transport"
	"github.com/calebres/aidesk/transport/gemini"
)

// Workbench is the assembled application core. Controllers share only the
// credential store; each owns its own state.
type Workbench struct {
	Config       *Config
	Logger       *log.Logger
	Store        stores.SessionStore
	Creds        credentials.Store
	Transport    transport.Transport
	ModelLister  transport.ModelLister
	Verifier     *access.Verifier
	Records      access.RecordStore
	Conversation *controllers.ConversationController
	Modules      map[controllers.ModuleKind]*controllers.ModuleController
}

// Option overrides one wired dependency, mainly for tests and embedders.
type Option func(*Workbench)

// WithStore replaces the session store.
func WithStore(store stores.SessionStore) Option {
	return func(w *Workbench) { w.Store = store }
}

// WithCredentialStore replaces the credential store.
func WithCredentialStore(creds credentials.Store) Option {
	return func(w *Workbench) { w.Creds = creds }
}

// WithTransport replaces the generation transport.
func WithTransport(t transport.Transport) Option {
	return func(w *Workbench) { w.Transport = t }
}

// WithRecordStore replaces the license record store.
func WithRecordStore(records access.RecordStore) Option {
	return func(w *Workbench) { w.Records = records }
}

// WithLogger replaces the logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Workbench) { w.Logger = logger }
}

// NewWorkbench builds the application core from configuration.
func NewWorkbench(cfg *Config, opts ...Option) (*Workbench, error) {
	w := &Workbench{
		Config: cfg,
		Logger: log.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	fingerprint := access.Fingerprint()

	if w.Creds == nil {
		creds, err := credentials.NewFileStore(cfg.CredentialDir, []byte(fingerprint))
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		w.Creds = creds
	}

	if w.Store == nil {
		store, err := stores.NewStore(stores.NewStoreConfig(cfg.StoreType, cfg.StoreConnection))
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		w.Store = store
	}

	if w.Records == nil {
		records, err := access.NewGormRecordStore(cfg.RecordStoreType, cfg.RecordStoreConnection)
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		w.Records = records
	}

	if w.Transport == nil {
		client := gemini.NewClient(w.Logger)
		w.Transport = client
		w.ModelLister = client
	}

	w.Verifier = access.NewVerifier(w.Records, fingerprint, w.Logger)

	params := models.DefaultParams()
	if cfg.DefaultModel != "" {
		params.Model = cfg.DefaultModel
	}

	w.Conversation = controllers.NewConversationController(w.Transport, w.Creds, w.Store, params, w.Logger)

	w.Modules = make(map[controllers.ModuleKind]*controllers.ModuleController)
	for kind, spec := range controllers.Modules() {
		w.Modules[kind] = controllers.NewModuleController(spec, w.Transport, w.Creds, params, w.Logger)
	}

	return w, nil
}
