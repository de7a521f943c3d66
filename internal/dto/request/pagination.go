package request

import "service-marketplace/pkg/utils"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginatedRequest struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"pageSize" validate:"omitempty,min=1,max=100"`
}

func (p PaginatedRequest) CurrentPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

func (p PaginatedRequest) Offset() int {
	return utils.CalculateOffset(p.CurrentPage(), p.Limit())
}

func (p PaginatedRequest) Limit() int {
	if p.PageSize < 1 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}
