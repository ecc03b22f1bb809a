package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/utils"
)

var hundred = decimal.NewFromInt(100)

// participant is one parsed split input.
type participant struct {
	userID uuid.UUID
	value  decimal.Decimal
}

func parseParticipants(inputs []models.SplitInput) ([]participant, error) {
	out := make([]participant, 0, len(inputs))
	seen := make(map[uuid.UUID]bool, len(inputs))
	for _, in := range inputs {
		id, err := uuid.Parse(in.UserID)
		if err != nil {
			return nil, utils.ErrValidation(fmt.Sprintf("invalid split user id %q", in.UserID))
		}
		if seen[id] {
			return nil, utils.ErrValidation(fmt.Sprintf("user %s appears twice in splits", id))
		}
		seen[id] = true
		out = append(out, participant{userID: id, value: in.Value})
	}
	return out, nil
}

// payerFirst moves the payer to the front so leftover cents from an uneven
// division land on the person who paid.
func payerFirst(ps []participant, payer uuid.UUID) []participant {
	out := make([]participant, 0, len(ps))
	for _, p := range ps {
		if p.userID == payer {
			out = append(out, p)
		}
	}
	for _, p := range ps {
		if p.userID != payer {
			out = append(out, p)
		}
	}
	return out
}

// buildSplits turns the request's participants into owed amounts that sum
// exactly to total.
func buildSplits(splitType string, total money.Money, payer uuid.UUID, ps []participant) ([]models.ExpenseSplit, error) {
	if len(ps) == 0 {
		return nil, utils.ErrValidation("at least one participant is required")
	}
	ps = payerFirst(ps, payer)

	var amounts []money.Money
	var err error
	switch splitType {
	case models.SplitEqual:
		amounts, err = money.Split(total, len(ps))

	case models.SplitExact:
		amounts = make([]money.Money, len(ps))
		var sum money.Money
		for i, p := range ps {
			if amounts[i], err = money.FromDecimal(p.value); err != nil {
				return nil, utils.ErrValidation(fmt.Sprintf("split for %s: %v", p.userID, err))
			}
			if amounts[i].IsNegative() {
				return nil, utils.ErrValidation("split amounts cannot be negative")
			}
			sum = sum.Add(amounts[i])
		}
		if sum != total {
			return nil, utils.ErrValidation(fmt.Sprintf("split amounts add up to %s, expected %s", sum, total))
		}

	case models.SplitPercentage:
		weights := make([]decimal.Decimal, len(ps))
		sum := decimal.Zero
		for i, p := range ps {
			if p.value.IsNegative() {
				return nil, utils.ErrValidation("percentages cannot be negative")
			}
			weights[i] = p.value
			sum = sum.Add(p.value)
		}
		if !sum.Equal(hundred) {
			return nil, utils.ErrValidation(fmt.Sprintf("percentages add up to %s, expected 100", sum))
		}
		amounts, err = money.Allocate(total, weights)

	case models.SplitShares:
		weights := make([]decimal.Decimal, len(ps))
		for i, p := range ps {
			if !p.value.IsPositive() {
				return nil, utils.ErrValidation("shares must be positive")
			}
			weights[i] = p.value
		}
		amounts, err = money.Allocate(total, weights)

	default:
		return nil, utils.ErrValidation(fmt.Sprintf("unknown split type %q", splitType))
	}
	if err != nil {
		return nil, utils.ErrValidation(err.Error())
	}

	splits := make([]models.ExpenseSplit, len(ps))
	for i, p := range ps {
		splits[i] = models.ExpenseSplit{UserID: p.userID, OwedAmount: amounts[i]}
	}
	return splits, nil
}
