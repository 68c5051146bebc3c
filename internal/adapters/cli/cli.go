package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sales-ledger/internal/app"
)

// Usage lists the available commands.
const Usage = `Commands:
  orders [status]                                   list orders
  order <order-id>                                  show an order
  create-order                                      create an order from JSON on stdin
  status <order-id> <status>                        change order status
  annul <order-id> <reason>                         annul an order
  remove-item <order-id> <item-id>                  remove one order line
  discount <order-id> <type> [percentage] [reason]  apply a discount
  revoke-discount <discount-id>                     revoke a discount
  pay <order-id> <amount> <method> [notes]          register a payment
  cancel-payment <payment-id> [reason]              cancel a payment
  restore-payment <payment-id>                      restore a cancelled payment
  payments <order-id>                               list payments with summary
  transfer <payment-id> <dest-agent-id> <month> <year> [amount]
  revoke-transfer <transfer-id> <reason>            revoke a transfer
  available <payment-id>                            available transfer balance
  promotions [--active]                             list promotions
  activate-promotion <promotion-id>                 reactivate a promotion
  deactivate-promotion <promotion-id>               deactivate a promotion
  movements <product-id>                            stock audit trail`

// Run executes a one-shot CLI command. args is os.Args[1:]; the first element is the
// subcommand name. actor is the acting agent's username. Results are written as JSON.
func Run(ctx context.Context, svc app.ApplicationService, actor string, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", Usage)
	}
	cmd, rest := args[0], args[1:]

	var (
		result any
		err    error
	)
	switch cmd {
	case "orders":
		req := app.ListOrdersRequest{}
		if len(rest) > 0 {
			req.Status = rest[0]
		}
		result, err = svc.ListOrders(ctx, req)

	case "order":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "order-id"); err == nil {
			result, err = svc.GetOrder(ctx, id)
		}

	case "create-order":
		req := app.CreateOrderRequest{}
		if err = json.NewDecoder(stdin).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON on stdin: %w", err)
		}
		req.Actor = actor
		result, err = svc.CreateOrder(ctx, req)

	case "status":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "order-id"); err == nil {
			if err = need(rest, 2, "status <order-id> <status>"); err == nil {
				result, err = svc.ChangeOrderStatus(ctx, app.ChangeStatusRequest{Actor: actor, OrderID: id, Status: rest[1]})
			}
		}

	case "annul":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "order-id"); err == nil {
			if err = need(rest, 2, "annul <order-id> <reason>"); err == nil {
				result, err = svc.AnnulOrder(ctx, app.AnnulOrderRequest{Actor: actor, OrderID: id, Reason: strings.Join(rest[1:], " ")})
			}
		}

	case "remove-item":
		var id, itemID uuid.UUID
		if id, err = argUUID(rest, 0, "order-id"); err == nil {
			if itemID, err = argUUID(rest, 1, "item-id"); err == nil {
				result, err = svc.RemoveOrderItem(ctx, app.RemoveOrderItemRequest{Actor: actor, OrderID: id, ItemID: itemID})
			}
		}

	case "discount":
		result, err = runDiscount(ctx, svc, actor, rest)

	case "revoke-discount":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "discount-id"); err == nil {
			result, err = svc.RevokeDiscount(ctx, app.RevokeDiscountRequest{Actor: actor, DiscountID: id})
		}

	case "pay":
		result, err = runPay(ctx, svc, actor, rest)

	case "cancel-payment":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "payment-id"); err == nil {
			result, err = svc.CancelPayment(ctx, app.CancelPaymentRequest{Actor: actor, PaymentID: id, Reason: strings.Join(rest[1:], " ")})
		}

	case "restore-payment":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "payment-id"); err == nil {
			result, err = svc.RestorePayment(ctx, app.RestorePaymentRequest{Actor: actor, PaymentID: id})
		}

	case "payments":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "order-id"); err == nil {
			result, err = svc.ListPayments(ctx, id)
		}

	case "transfer":
		result, err = runTransfer(ctx, svc, actor, rest)

	case "revoke-transfer":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "transfer-id"); err == nil {
			if err = need(rest, 2, "revoke-transfer <transfer-id> <reason>"); err == nil {
				result, err = svc.RevokeTransfer(ctx, app.RevokeTransferRequest{Actor: actor, TransferID: id, Reason: strings.Join(rest[1:], " ")})
			}
		}

	case "available":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "payment-id"); err == nil {
			result, err = svc.GetAvailableBalance(ctx, id)
		}

	case "promotions":
		result, err = svc.ListPromotions(ctx, len(rest) > 0 && rest[0] == "--active")

	case "activate-promotion":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "promotion-id"); err == nil {
			result, err = svc.ActivatePromotion(ctx, app.ActivatePromotionRequest{Actor: actor, PromotionID: id})
		}

	case "deactivate-promotion":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "promotion-id"); err == nil {
			result, err = svc.DeactivatePromotion(ctx, app.DeactivatePromotionRequest{Actor: actor, PromotionID: id})
		}

	case "movements":
		var id uuid.UUID
		if id, err = argUUID(rest, 0, "product-id"); err == nil {
			result, err = svc.ListStockMovements(ctx, id)
		}

	default:
		return fmt.Errorf("unknown command: %s\n%s", cmd, Usage)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runDiscount(ctx context.Context, svc app.ApplicationService, actor string, rest []string) (any, error) {
	id, err := argUUID(rest, 0, "order-id")
	if err != nil {
		return nil, err
	}
	if err := need(rest, 2, "discount <order-id> <type> [percentage] [reason]"); err != nil {
		return nil, err
	}
	req := app.ApplyDiscountRequest{Actor: actor, OrderID: id, Type: strings.ToUpper(rest[1])}
	if len(rest) > 2 {
		pct, err := decimal.NewFromString(rest[2])
		if err != nil {
			return nil, fmt.Errorf("invalid percentage %q: %w", rest[2], err)
		}
		req.Percentage = &pct
		req.Reason = strings.Join(rest[3:], " ")
	}
	return svc.ApplyDiscount(ctx, req)
}

func runPay(ctx context.Context, svc app.ApplicationService, actor string, rest []string) (any, error) {
	id, err := argUUID(rest, 0, "order-id")
	if err != nil {
		return nil, err
	}
	if err := need(rest, 3, "pay <order-id> <amount> <method> [notes]"); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(rest[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", rest[1], err)
	}
	today := time.Now()
	return svc.RegisterPayment(ctx, app.RegisterPaymentRequest{
		Actor:             actor,
		OrderID:           id,
		Amount:            amount,
		Method:            strings.ToUpper(rest[2]),
		ActualPaymentDate: &today,
		Notes:             strings.Join(rest[3:], " "),
	})
}

func runTransfer(ctx context.Context, svc app.ApplicationService, actor string, rest []string) (any, error) {
	const usage = "transfer <payment-id> <dest-agent-id> <month> <year> [amount]"
	if err := need(rest, 4, usage); err != nil {
		return nil, err
	}
	paymentID, err := argUUID(rest, 0, "payment-id")
	if err != nil {
		return nil, err
	}
	destID, err := argUUID(rest, 1, "dest-agent-id")
	if err != nil {
		return nil, err
	}
	month, err := strconv.Atoi(rest[2])
	if err != nil {
		return nil, fmt.Errorf("invalid month %q", rest[2])
	}
	year, err := strconv.Atoi(rest[3])
	if err != nil {
		return nil, fmt.Errorf("invalid year %q", rest[3])
	}
	req := app.CreateTransferRequest{Actor: actor, PaymentID: paymentID, DestAgentID: destID, TargetMonth: month, TargetYear: year}
	if len(rest) > 4 {
		amount, err := decimal.NewFromString(rest[4])
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", rest[4], err)
		}
		req.Amount = &amount
	}
	return svc.CreateTransfer(ctx, req)
}

func argUUID(args []string, i int, name string) (uuid.UUID, error) {
	if len(args) <= i {
		return uuid.Nil, fmt.Errorf("missing <%s>", name)
	}
	id, err := uuid.Parse(args[i])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid <%s> %q: %w", name, args[i], err)
	}
	return id, nil
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}
