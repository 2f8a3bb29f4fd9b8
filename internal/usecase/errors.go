package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 機械可読なエラー種別
type ErrorCode string

const (
	CodeEmptyCart         ErrorCode = "EMPTY_CART"
	CodeInventoryNotFound ErrorCode = "INVENTORY_NOT_FOUND"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeInvalidAddress    ErrorCode = "INVALID_ADDRESS"
	CodeNoAddressOnFile   ErrorCode = "NO_ADDRESS_ON_FILE"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL"
)

// 呼び出し側に返すエラー。内部の詳細は入れない。
type AppError struct {
	Status  int
	Code    ErrorCode
	Message string

	//在庫系エラーの対象商品（無ければ0）
	ProductID int64
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// 同じCodeならerrors.Isで一致
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.ProductID == 0 && t.Message == ""
}

func NewAppError(status int, code ErrorCode, message string) error {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// ステータスからCodeを決める
func NewHTTPError(status int, message string) error {
	return NewAppError(status, codeForStatus(status), message)
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// errors.Is用の種別
var (
	ErrEmptyCart         = &AppError{Code: CodeEmptyCart}
	ErrInventoryNotFound = &AppError{Code: CodeInventoryNotFound}
	ErrInsufficientStock = &AppError{Code: CodeInsufficientStock}
	ErrInvalidAddress    = &AppError{Code: CodeInvalidAddress}
	ErrNoAddressOnFile   = &AppError{Code: CodeNoAddressOnFile}
	ErrValidation        = &AppError{Code: CodeValidation}
	ErrTimeout           = &AppError{Code: CodeTimeout}
	ErrNotFound          = &AppError{Code: CodeNotFound}
	ErrUnauthorized      = &AppError{Code: CodeUnauthorized}
	ErrForbidden         = &AppError{Code: CodeForbidden}
	ErrConflict          = &AppError{Code: CodeConflict}
	ErrInternal          = &AppError{Code: CodeInternal}
)

func emptyCartError() error {
	return NewAppError(http.StatusBadRequest, CodeEmptyCart, "Cart is empty.")
}

func inventoryNotFoundError(productID int64, name string) error {
	return &AppError{
		Status:    http.StatusBadRequest,
		Code:      CodeInventoryNotFound,
		Message:   "Inventory not found for " + name,
		ProductID: productID,
	}
}

func insufficientStockError(productID int64, name string) error {
	return &AppError{
		Status:    http.StatusConflict,
		Code:      CodeInsufficientStock,
		Message:   "Not enough stock for " + name,
		ProductID: productID,
	}
}

func invalidAddressError() error {
	return NewAppError(http.StatusBadRequest, CodeInvalidAddress, "Invalid address_id for user.")
}

func noAddressOnFileError() error {
	return NewAppError(http.StatusBadRequest, CodeNoAddressOnFile, "User has no address on file.")
}

func validationError(message string) error {
	return NewAppError(http.StatusBadRequest, CodeValidation, message)
}

func timeoutError() error {
	return NewAppError(http.StatusGatewayTimeout, CodeTimeout, "order placement timed out")
}

func internalError() error {
	return NewAppError(http.StatusInternalServerError, CodeInternal, "internal error")
}
