// internal/contracts/verification.go
package contracts

import (
	"context"
	"strings"

	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// VerificationRegistry wraps the identity verification contract. Read-only:
// verification levels are granted off-platform.
type VerificationRegistry struct {
	binding
}

func NewVerificationRegistry(gw *gateway.Gateway, address string, logger *zap.Logger) (*VerificationRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(VerificationRegistryABI))
	if err != nil {
		return nil, err
	}
	return &VerificationRegistry{
		binding: binding{
			gw:      gw,
			address: common.HexToAddress(address),
			abi:     parsed,
			logger:  logger,
		},
	}, nil
}

// LevelOf returns the account's verification level. Unregistered accounts
// read as LevelNone.
func (r *VerificationRegistry) LevelOf(ctx context.Context, account string) (domain.VerificationLevel, error) {
	out, err := r.call(ctx, "verificationLevel", common.HexToAddress(account))
	if err != nil {
		return domain.LevelNone, err
	}
	if len(out) == 0 {
		return domain.LevelNone, nil
	}
	return domain.VerificationLevel(asUint8(out[0])), nil
}
