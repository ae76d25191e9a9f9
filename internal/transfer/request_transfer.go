package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type ConnectRequest struct {
	Platform    string `json:"platform"`
	RedirectURL string `json:"redirect_url"`
}

type PostCreation struct {
	Caption       string `form:"caption"`
	Title         string `form:"title"`
	Hashtags      string `form:"hashtags"`
	CallToAction  string `form:"call_to_action"`
	ScheduledTime string `form:"scheduled_time"`
	AccountIDs    string `form:"account_ids"`
}

type GenerateRequest struct {
	Topic    string `json:"topic"`
	Tone     string `json:"tone"`
	Platform string `json:"platform"`
}

type GenerateResponse struct {
	Content  string `json:"content"`
	Hashtags string `json:"hashtags"`
	CTA      string `json:"cta"`
}
