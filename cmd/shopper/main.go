package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/page"
	"github.com/angelmondragon/storefront/internal/postal"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

// clientIDKey holds the shopper's client id at the root of the state file.
const clientIDKey = "shopper.clientId"

// app is the state shared by every subcommand of one invocation.
type app struct {
	statePath string
	apiURL    string
	postalURL string
	timeout   time.Duration
	logLevel  string
	asJSON    bool

	out  io.Writer
	logg *logger.Logger

	store    storage.Storage
	api      *storefrontapi.Client
	postal   *postal.Client
	pages    *page.Factory
	clientID string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "shopper",
		Short:         "Browse the storefront and manage a cart from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.statePath, "state", envOr(config.EnvStorageFile, ".storefront/shopper.json"), "file holding the cart and session")
	flags.StringVar(&a.apiURL, "api-url", os.Getenv(config.EnvAPIURL), "base URL of the product and auth API")
	flags.StringVar(&a.postalURL, "postal-url", envOr("STOREFRONT_POSTAL_URL", "https://viacep.com.br/ws"), "base URL of the postal code service")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "timeout for remote calls")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")
	flags.BoolVar(&a.asJSON, "json", false, "print the page state as JSON")

	root.AddCommand(
		newProductsCmd(a),
		newCategoriesCmd(a),
		newCartCmd(a),
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newCEPCmd(a),
	)
	return root
}

// open wires the file storage, remote clients and page factory, and loads or
// issues the persisted client id.
func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.logg = logger.New(logger.Options{
		ServiceName: "shopper",
		Level:       logger.ParseLevel(a.logLevel),
		Output:      os.Stderr,
	})

	file, err := storage.NewFile(a.statePath)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	a.store = file

	deps := page.Deps{
		Storage:    file,
		Selections: cart.NewSelectionRegistry(0),
		Logger:     a.logg,
	}
	if a.apiURL != "" {
		a.api, err = storefrontapi.NewClient(a.apiURL, storefrontapi.WithTimeout(a.timeout), storefrontapi.WithLogger(a.logg))
		if err != nil {
			return err
		}
		deps.Source = a.api
		deps.Auth = a.api
	}
	a.postal = postal.NewClient(postal.WithBaseURL(a.postalURL), postal.WithTimeout(a.timeout))

	a.pages, err = page.NewFactory(deps)
	if err != nil {
		return err
	}

	a.clientID, err = a.loadClientID(ctx)
	return err
}

func (a *app) loadClientID(ctx context.Context) (string, error) {
	id, err := a.store.Get(ctx, clientIDKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	id = uuid.NewString()
	if err := a.store.Set(ctx, clientIDKey, id); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "save client id")
	}
	return id, nil
}

// load opens and hydrates the client's page of kind.
func (a *app) load(ctx context.Context, kind page.Kind) (*page.Page, error) {
	p, err := a.pages.Open(a.clientID, kind)
	if err != nil {
		return nil, err
	}
	p.Load(ctx)
	return p, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
