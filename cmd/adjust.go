package cmd

import (
	"context"
	"fmt"
	"strings"

	"clubledger/config"
	"clubledger/service"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// AdjustBalance applies an administrative adjustment from the command line,
// acting as the account named by OPERATOR_ACCOUNT_ID.
// Usage: adjust-balance <account-id> <signed-amount> <reason...>
func AdjustBalance(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: clubledger adjust-balance <account-id> <signed-amount> <reason...>")
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}

	cfg := config.Get()
	if cfg.OperatorAccountID == "" {
		return fmt.Errorf("OPERATOR_ACCOUNT_ID is required for adjust-balance")
	}

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close(context.Background())

	operator, err := c.accounts.ResolveCaller(ctx, cfg.OperatorAccountID)
	if err != nil {
		return fmt.Errorf("failed to resolve operator: %w", err)
	}

	tx, err := c.adjustments().AdjustBalance(ctx, operator, service.AdjustRequest{
		AccountID:    args[0],
		SignedAmount: amount,
		Reason:       strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"transactionId": tx.ID,
		"accountId":     tx.AccountID,
		"amount":        tx.AmountTotal.StringFixed(2),
		"operator":      operator.AccountID,
	}).Info("Adjustment applied")
	return nil
}
