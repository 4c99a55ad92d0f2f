package kindauth

import (
	"context"

	"github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/model"
)

// Register creates an inactive account and sends an ACTIVATION code on every
// channel it has. The account becomes active once each channel is verified
// through VerifyOTP. Delivery failures are logged; the codes can be reissued
// with ResendOTP.
func (e *Engine) Register(ctx context.Context, in NewAccount) (model.Account, error) {
	if e == nil {
		return model.Account{}, ErrEngineNotReady
	}
	if !in.Kind.Valid() || (in.Email == "" && in.Phone == "") {
		return model.Account{}, ErrInvalidInput
	}

	req := flows.RegisterRequest{Kind: in.Kind, Password: in.Password}
	if in.Email != "" {
		email, err := NormalizeEmail(in.Email)
		if err != nil {
			return model.Account{}, err
		}
		req.Email = email
	}
	if in.Phone != "" {
		phone, err := NormalizePhone(in.Phone)
		if err != nil {
			return model.Account{}, err
		}
		req.Phone = phone
	}

	res, err := flows.RunRegister(ctx, req, e.flows.Register)
	if res == nil {
		return model.Account{}, err
	}
	return res.Account, err
}
