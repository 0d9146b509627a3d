package gateway

import (
	"context"

	"github.com/jrsteele09/go-admin-console/authapi"
)

// InProcess is the rendering-phase session backend. The facade calls the gateway directly instead
// of going through the BFF API, with the request's cookies standing in for the browser's.
type InProcess struct {
	gw *Gateway
}

func NewInProcess(gw *Gateway) *InProcess {
	return &InProcess{gw: gw}
}

func (b *InProcess) Login(ctx context.Context, email, password string) (*authapi.AdminUserProfile, error) {
	resp, err := b.gw.Login(ctx, authapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (b *InProcess) Logout(ctx context.Context) error {
	err := b.gw.Logout(ctx)
	b.gw.Store().Clear()
	return err
}

func (b *InProcess) Refresh(ctx context.Context) error {
	return b.gw.RefreshToken(ctx)
}

func (b *InProcess) Profile(ctx context.Context) (*authapi.AdminUserProfile, error) {
	return b.gw.GetProfile(ctx)
}
