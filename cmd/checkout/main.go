package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"storefront/internal/checkout"
	"storefront/internal/config"

	"github.com/joho/godotenv"
)

const usage = `usage: checkout [flags] <command> [args]

commands:
  add <product_id> <quantity>   add a product to the cart
  review                        move the cart to the address form
  edit                          go back from the address form to the cart
  submit [customer flags]       place the order
  proof <file>                  upload the transfer receipt
  cancel                        cancel the order and return to the cart
  finish                        close a completed checkout
  status                        show the current checkout state
  track <tracking_code>         look up any order by tracking code

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	apiURL := fs.String("api", envOr("CHECKOUT_API_URL", "http://localhost:8080"), "storefront API base URL")
	apiKey := fs.String("key", os.Getenv("API_KEY"), "gateway API key")
	token := fs.String("token", os.Getenv("CHECKOUT_TOKEN"), "bearer token of a signed-in customer")
	statePath := fs.String("state", envOr("CHECKOUT_STATE", defaultStatePath()), "checkout state file")
	logLevel := fs.String("log-level", envOr("LOG_LEVEL", "warn"), "log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	logger := config.NewLoggerTo(config.LoggerConfig{Level: *logLevel, Format: "console"}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := checkout.NewClient(*apiURL, checkout.ClientOptions{APIKey: *apiKey, Token: *token}, logger)
	wf := checkout.NewWorkflow(client, checkout.NewFileStore(*statePath), checkout.Options{
		Authenticated: client.Authenticated(),
	}, logger)

	if _, err := wf.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume checkout: %w", err)
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "add":
		err = add(ctx, wf, cmdArgs)
	case "review":
		err = wf.ReviewCart(ctx)
	case "edit":
		err = wf.EditCart(ctx)
	case "submit":
		err = submit(ctx, wf, cmdArgs)
	case "proof":
		err = proof(ctx, wf, cmdArgs)
	case "cancel":
		err = wf.CancelAndReturn(ctx)
	case "finish":
		err = wf.Finish(ctx)
	case "status":
	case "track":
		return track(ctx, client, cmdArgs, out)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	printState(out, wf.State())

	var failure *checkout.Failure
	if errors.As(err, &failure) {
		// Already shown with the state.
		return errors.New(failure.Code)
	}
	return err
}

func add(ctx context.Context, wf *checkout.Workflow, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: add <product_id> <quantity>")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}
	return wf.AddToCart(ctx, args[0], qty)
}

func submit(ctx context.Context, wf *checkout.Workflow, args []string) error {
	c := wf.State().Customer

	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.StringVar(&c.Name, "name", c.Name, "full name")
	fs.StringVar(&c.Email, "email", c.Email, "email address")
	fs.StringVar(&c.Phone, "phone", c.Phone, "phone number")
	fs.StringVar(&c.Country, "country", c.Country, "country")
	fs.StringVar(&c.State, "region", c.State, "state or region")
	fs.StringVar(&c.City, "city", c.City, "city")
	fs.StringVar(&c.Address, "address", c.Address, "street address")
	fs.StringVar(&c.Cedula, "cedula", c.Cedula, "national id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return wf.SubmitOrder(ctx, c)
}

func proof(ctx context.Context, wf *checkout.Workflow, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: proof <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}

	if wf.State().Step == checkout.StepOrderCreated {
		if err := wf.StartProof(ctx); err != nil {
			return err
		}
	}
	return wf.UploadProof(ctx, filepath.Base(args[0]), data)
}

func track(ctx context.Context, api checkout.API, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: track <tracking_code>")
	}
	view, err := api.TrackOrder(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s  %s  %s  total %s\n", view.TrackingCode, view.Status, view.CreatedAt.Format("2006-01-02 15:04"), view.TotalAmount.StringFixed(2))
	for _, it := range view.Items {
		fmt.Fprintf(out, "  %d x %s @ %s\n", it.Quantity, it.Name, it.Price.StringFixed(2))
	}
	return nil
}

func printState(out io.Writer, s *checkout.State) {
	fmt.Fprintf(out, "step: %s\n", s.Step)
	for _, l := range s.Cart {
		fmt.Fprintf(out, "  %d x %s (%s) @ %s\n", l.Quantity, l.Name, l.ProductID, l.Price.StringFixed(2))
	}
	if len(s.Cart) > 0 {
		fmt.Fprintf(out, "cart total: %s\n", s.CartTotal().StringFixed(2))
	}
	if s.TrackingCode != "" {
		fmt.Fprintf(out, "order: %s  tracking code: %s\n", s.OrderID, s.TrackingCode)
		fmt.Fprintf(out, "subtotal %s  shipping %s  total %s\n",
			s.Subtotal.StringFixed(2), s.ShippingCost.StringFixed(2), s.TotalAmount.StringFixed(2))
	}
	if s.ProofURL != "" {
		fmt.Fprintf(out, "payment proof: %s\n", s.ProofURL)
	}
	if s.Failure != nil {
		fmt.Fprintf(out, "error: %s\n", s.Failure.Message)
		for _, sh := range s.Failure.Shortages {
			fmt.Fprintf(out, "  %s: requested %d, available %d\n", sh.Product, sh.Requested, sh.Available)
		}
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "checkout.json"
	}
	return filepath.Join(dir, "storefront", "checkout.json")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
