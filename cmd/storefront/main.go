// Command storefront is a terminal shopping client: it browses the catalog,
// keeps a persistent cart and places orders through the storefront API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/checkout"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/storefront"
	"github.com/xenking/storefront/internal/wire"
)

const usage = `usage: storefront <command> [args]

commands:
  products [search]            list catalog products
  add <product-id> [qty]       add a product to the cart
  remove <product-id>          remove a product from the cart
  set <product-id> <qty>       change the quantity of a cart line
  cart                         show the cart
  clear                        empty the cart
  checkout -name N -surname S -phone P -state ST
                               place an order for the cart
`

// shop is the part of storefront.Session the commands use.
type shop interface {
	Products(ctx context.Context, search string) ([]wire.Product, error)
	Cart(ctx context.Context) (cart.State, error)
	AddProduct(ctx context.Context, productID string, quantity int) (cart.State, error)
	Remove(ctx context.Context, productID string) (cart.State, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.State, error)
	Clear(ctx context.Context) (cart.State, error)
	Checkout(ctx context.Context, form checkout.Form) (*checkout.Receipt, error)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	lg, err := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	cfg, err := storefront.LoadConfig()
	if err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sess, err := storefront.Open(ctx, cfg, storefront.WithLogger(lg))
	if err != nil {
		lg.Fatal("Open session", zap.Error(err))
	}

	runErr := run(ctx, sess, os.Args[1:], os.Stdout)

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer closeCancel()
	if err := sess.Close(closeCtx); err != nil {
		lg.Error("Close session", zap.Error(err))
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, s shop, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "products":
		var search string
		if len(args) > 0 {
			search = args[0]
		}
		products, err := s.Products(ctx, search)
		if err != nil {
			return err
		}
		printProducts(out, products)
		return nil
	case "add":
		if len(args) < 1 {
			return errors.New("add: product id required")
		}
		qty := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "add: quantity")
			}
			qty = n
		}
		state, err := s.AddProduct(ctx, args[0], qty)
		if err != nil {
			return err
		}
		printCart(out, state)
		return nil
	case "remove":
		if len(args) < 1 {
			return errors.New("remove: product id required")
		}
		state, err := s.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		printCart(out, state)
		return nil
	case "set":
		if len(args) < 2 {
			return errors.New("set: product id and quantity required")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Wrap(err, "set: quantity")
		}
		state, err := s.UpdateQuantity(ctx, args[0], qty)
		if err != nil {
			return err
		}
		printCart(out, state)
		return nil
	case "cart":
		state, err := s.Cart(ctx)
		if err != nil {
			return err
		}
		printCart(out, state)
		return nil
	case "clear":
		state, err := s.Clear(ctx)
		if err != nil {
			return err
		}
		printCart(out, state)
		return nil
	case "checkout":
		return runCheckout(ctx, s, args, out)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func runCheckout(ctx context.Context, s shop, args []string, out io.Writer) error {
	var form checkout.Form
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&form.Name, "name", "", "first name")
	fs.StringVar(&form.Surname, "surname", "", "last name")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&form.State, "state", "", "delivery state")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "checkout")
	}

	receipt, err := s.Checkout(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Order %s placed\n", receipt.OrderID)
	printCart(out, cart.State{Items: receipt.Items})
	fmt.Fprintf(out, "Charged: %s\n", receipt.Total.StringFixed(2))
	return nil
}

func printProducts(out io.Writer, products []wire.Product) {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products found")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Quantity)
	}
	_ = tw.Flush()
}

func printCart(out io.Writer, state cart.State) {
	if state.Len() == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE")
	for _, it := range state.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.ProductID, it.Name, it.Quantity, it.Price.StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "Items: %d  Total: %s\n", state.Count(), state.Total().StringFixed(2))
}
