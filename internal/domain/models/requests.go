package models

// Requests for prediction HTTP endpoints. Timeframes are parsed case-insensitively
// by the handler, so they carry defaults but no enum validation here.

type PredictRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1M"`
}

type CompareRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1M"`
}

type AnalysisRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=32"`
}

type RefreshRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1M"`
}

type InvalidateRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1M"`
}

type ImportanceRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1M"`
	Top       int    `query:"top" json:"top" default:"10" validate:"gte=1,lte=50"`
}

type WarmupRequest struct {
	Symbols    []string `json:"symbols" validate:"required,min=1,max=100,dive,required,max=32"`
	Timeframes []string `json:"timeframes" validate:"max=4"`
}
