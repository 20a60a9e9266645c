package errmsg

import (
	"errors"
	"net/http"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)

	ErrQueryParamInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("query parameter is invalid"),
	)
)

var (
	ErrUserBalanceNotEnough = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("user balance not enough funds"),
	)

	ErrUserCoinsNotEnough = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("user coin balance not enough"),
	)

	ErrDailyRewardClaimed = NewHTTPError(
		http.StatusConflict,
		errors.New("daily reward already claimed today"),
	)

	ErrCoinAmountInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("coin amount must be a positive whole number"),
	)
)

var (
	ErrPlanNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("investment plan not found"),
	)

	ErrInvestmentAmountInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("investment amount is below plan minimum or not positive"),
	)
)

var ErrOrderItemsInvalid = NewHTTPError(
	http.StatusUnprocessableEntity,
	errors.New("order items are empty or invalid"),
)

var (
	ErrWithdrawalAddressEmpty = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("withdrawal address is empty"),
	)

	ErrNothingToWithdraw = NewHTTPError(
		http.StatusConflict,
		errors.New("withdrawable balance is empty"),
	)
)

var (
	ErrCardExists = NewHTTPError(
		http.StatusConflict,
		errors.New("virtual card already issued"),
	)
	ErrCardNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("virtual card not issued"),
	)
	ErrCardBalanceNotEnough = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("card balance not enough funds"),
	)
	ErrCardAmountInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("card amount must be positive"),
	)
)
