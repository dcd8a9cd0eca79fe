package entity

import "github.com/shopspring/decimal"

type Course struct {
	ID               uint64
	Title            string
	ShortDescription string
	FullDescription  string
	MaterialsLink    string
	Price            decimal.Decimal
}
