package booking

import (
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/events"
	"stayvibe/internal/domain/shared/money"
)

type Requested struct {
	events.Base
	Unit   string
	Range  daterange.DateRange
	Amount money.Money
}

type DepositConfirmed struct {
	events.Base
	Amount money.Money
	Rail   Rail
}

type FullyPaid struct {
	events.Base
	Amount money.Money
	Rail   Rail
}

type Cancelled struct {
	events.Base
	Reason string
}
