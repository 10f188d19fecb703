package cognito

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/invencare/go-auth"
)

// API is the subset of the Cognito client used by IdentityProvider.
type API interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	ChangePassword(ctx context.Context, params *cip.ChangePasswordInput, optFns ...func(*cip.Options)) (*cip.ChangePasswordOutput, error)
	DeleteUser(ctx context.Context, params *cip.DeleteUserInput, optFns ...func(*cip.Options)) (*cip.DeleteUserOutput, error)
}

// IdentityProvider implements auth.IdentityProvider backed by a user pool.
type IdentityProvider struct {
	config      Config
	client      API
	verifier    *TokenVerifier
	logger      auth.Logger
	now         func() time.Time
	refreshSkew time.Duration
}

var _ auth.IdentityProvider = (*IdentityProvider)(nil)

// Option customizes the provider.
type Option func(*IdentityProvider)

// WithVerifier checks ID tokens with v.
func WithVerifier(v *TokenVerifier) Option {
	return func(p *IdentityProvider) {
		p.verifier = v
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(p *IdentityProvider) {
		p.logger = logger
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(p *IdentityProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewIdentityProvider loads the default AWS configuration and, when
// cfg.VerifyTokens is set, the pool JWKS.
func NewIdentityProvider(ctx context.Context, cfg Config, opts ...Option) (*IdentityProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := cfg.region(); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("cognito: failed to load aws config: %w", err)
	}

	client := cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	p := NewWithClient(client, cfg, opts...)

	if cfg.VerifyTokens && p.verifier == nil {
		verifier, err := NewTokenVerifier(ctx, cfg, p.logger)
		if err != nil {
			return nil, err
		}
		p.verifier = verifier
	}

	return p, nil
}

// NewWithClient builds the provider over an existing client.
func NewWithClient(client API, cfg Config, opts ...Option) *IdentityProvider {
	p := &IdentityProvider{
		config:      cfg,
		client:      client,
		now:         time.Now,
		refreshSkew: auth.DefaultRefreshSkew,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Close releases the JWKS background refresh.
func (p *IdentityProvider) Close() {
	if p.verifier != nil {
		p.verifier.Close()
	}
}

func (p *IdentityProvider) SignUp(ctx context.Context, input auth.SignUpInput) (auth.SignUpResult, error) {
	attrs := []types.AttributeType{
		{Name: aws.String(auth.AttrEmail), Value: aws.String(strings.TrimSpace(input.Email))},
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String(auth.AttrName), Value: aws.String(name)})
	}

	out, err := p.client.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.config.ClientID),
		Username:       aws.String(input.Username),
		Password:       aws.String(input.Password),
		SecretHash:     p.secretHash(input.Username),
		UserAttributes: attrs,
	})
	if err != nil {
		return auth.SignUpResult{}, mapError("SignUp", err)
	}

	return auth.SignUpResult{
		UserID:               aws.ToString(out.UserSub),
		ConfirmationRequired: !out.UserConfirmed,
		Delivery:             codeDelivery(out.CodeDeliveryDetails),
	}, nil
}

func (p *IdentityProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := p.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.config.ClientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(username),
	})
	return mapError("ConfirmSignUp", err)
}

func (p *IdentityProvider) ResendConfirmationCode(ctx context.Context, username string) (auth.CodeDelivery, error) {
	out, err := p.client.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.config.ClientID),
		Username:   aws.String(username),
		SecretHash: p.secretHash(username),
	})
	if err != nil {
		return auth.CodeDelivery{}, mapError("ResendConfirmationCode", err)
	}
	return codeDelivery(out.CodeDeliveryDetails), nil
}

// SignIn runs the USER_PASSWORD_AUTH flow.
func (p *IdentityProvider) SignIn(ctx context.Context, username, password string) (auth.Tokens, error) {
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.config.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return auth.Tokens{}, mapError("InitiateAuth", err)
	}

	if out.AuthenticationResult == nil {
		challenge := string(out.ChallengeName)
		return auth.Tokens{}, &auth.ProviderError{
			Op:      "InitiateAuth",
			Code:    challenge,
			Message: fmt.Sprintf("sign in requires the %s challenge", challenge),
			Err:     ErrChallengeRequired,
		}
	}

	tokens := p.tokensFrom(out.AuthenticationResult, "")
	if err := p.verify(tokens.IDToken); err != nil {
		return auth.Tokens{}, err
	}
	return tokens, nil
}

// SignOut revokes every token of the user with GlobalSignOut.
func (p *IdentityProvider) SignOut(ctx context.Context, tokens auth.Tokens) error {
	if tokens.AccessToken == "" {
		return nil
	}
	_, err := p.client.GlobalSignOut(ctx, &cip.GlobalSignOutInput{
		AccessToken: aws.String(tokens.AccessToken),
	})
	return mapError("GlobalSignOut", err)
}

func (p *IdentityProvider) GetCurrentUser(ctx context.Context, tokens auth.Tokens) (auth.UserIdentity, error) {
	if err := p.verify(tokens.IDToken); err != nil {
		return auth.UserIdentity{}, err
	}

	out, err := p.getUser(ctx, tokens)
	if err != nil {
		return auth.UserIdentity{}, err
	}

	attrs := attributesFrom(out.UserAttributes)
	return auth.UserIdentity{
		UserID:      attrs.Get(auth.AttrSubject),
		Username:    aws.ToString(out.Username),
		DisplayName: attrs.DisplayName(),
	}, nil
}

func (p *IdentityProvider) FetchUserAttributes(ctx context.Context, tokens auth.Tokens) (auth.Attributes, error) {
	out, err := p.getUser(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return attributesFrom(out.UserAttributes), nil
}

// FetchSession returns tokens unchanged while valid and refreshes them with
// REFRESH_TOKEN_AUTH otherwise. The refresh token is carried over since the
// pool does not rotate it.
func (p *IdentityProvider) FetchSession(ctx context.Context, tokens auth.Tokens) (auth.Tokens, error) {
	if tokens.IsZero() {
		return auth.Tokens{}, noSession("FetchSession", "no current user", nil)
	}

	if tokens.ExpiresAt.IsZero() {
		if claims, err := unverifiedClaims(tokens.IDToken); err == nil && claims.ExpiresAt != nil {
			tokens.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	if !tokens.Expired(p.now(), p.refreshSkew) {
		return tokens, nil
	}

	if tokens.RefreshToken == "" {
		return auth.Tokens{}, noSession("FetchSession", "session has expired", nil)
	}

	params := map[string]string{
		"REFRESH_TOKEN": tokens.RefreshToken,
	}
	if p.config.ClientSecret != "" {
		username := ""
		if claims, err := unverifiedClaims(tokens.IDToken); err == nil {
			username = claims.Username
			if username == "" {
				username = claims.Subject
			}
		}
		params["SECRET_HASH"] = SecretHash(p.config.ClientSecret, username, p.config.ClientID)
	}

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.config.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return auth.Tokens{}, mapError("FetchSession", err)
	}
	if out.AuthenticationResult == nil {
		return auth.Tokens{}, noSession("FetchSession", "refresh returned no tokens", nil)
	}

	fresh := p.tokensFrom(out.AuthenticationResult, tokens.RefreshToken)
	if err := p.verify(fresh.IDToken); err != nil {
		return auth.Tokens{}, err
	}
	return fresh, nil
}

func (p *IdentityProvider) ResetPassword(ctx context.Context, username string) (auth.CodeDelivery, error) {
	out, err := p.client.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.config.ClientID),
		Username:   aws.String(username),
		SecretHash: p.secretHash(username),
	})
	if err != nil {
		return auth.CodeDelivery{}, mapError("ForgotPassword", err)
	}
	return codeDelivery(out.CodeDeliveryDetails), nil
}

func (p *IdentityProvider) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	_, err := p.client.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.config.ClientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
		SecretHash:       p.secretHash(username),
	})
	return mapError("ConfirmForgotPassword", err)
}

func (p *IdentityProvider) UpdatePassword(ctx context.Context, tokens auth.Tokens, oldPassword, newPassword string) error {
	_, err := p.client.ChangePassword(ctx, &cip.ChangePasswordInput{
		AccessToken:      aws.String(tokens.AccessToken),
		PreviousPassword: aws.String(oldPassword),
		ProposedPassword: aws.String(newPassword),
	})
	return mapError("ChangePassword", err)
}

func (p *IdentityProvider) DeleteUser(ctx context.Context, tokens auth.Tokens) error {
	_, err := p.client.DeleteUser(ctx, &cip.DeleteUserInput{
		AccessToken: aws.String(tokens.AccessToken),
	})
	return mapError("DeleteUser", err)
}

func (p *IdentityProvider) getUser(ctx context.Context, tokens auth.Tokens) (*cip.GetUserOutput, error) {
	if tokens.AccessToken == "" {
		return nil, noSession("GetUser", "no current user", nil)
	}
	out, err := p.client.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(tokens.AccessToken),
	})
	if err != nil {
		return nil, mapError("GetUser", err)
	}
	return out, nil
}

// verify is a no-op without a verifier.
func (p *IdentityProvider) verify(idToken string) error {
	if p.verifier == nil {
		return nil
	}
	if _, err := p.verifier.Verify(idToken); err != nil {
		if p.logger != nil {
			p.logger.Warn("cognito id token rejected: %v", err)
		}
		return noSession("VerifyToken", "the session token could not be verified", err)
	}
	return nil
}

func (p *IdentityProvider) tokensFrom(res *types.AuthenticationResultType, refreshToken string) auth.Tokens {
	tokens := auth.Tokens{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	if res.ExpiresIn > 0 {
		tokens.ExpiresAt = p.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return tokens
}

func attributesFrom(in []types.AttributeType) auth.Attributes {
	attrs := make(auth.Attributes, len(in))
	for _, a := range in {
		name := aws.ToString(a.Name)
		if name == "" {
			continue
		}
		attrs[name] = aws.ToString(a.Value)
	}
	return attrs
}

func codeDelivery(details *types.CodeDeliveryDetailsType) auth.CodeDelivery {
	if details == nil {
		return auth.CodeDelivery{}
	}
	return auth.CodeDelivery{
		Destination: aws.ToString(details.Destination),
		Medium:      string(details.DeliveryMedium),
		Attribute:   aws.ToString(details.AttributeName),
	}
}
