package client

// Client bundles the typed clients over one connection and token.
type Client struct {
	HTTP         *HttpClient
	Auth         *AuthClient
	Institutes   *InstituteClient
	Appointments *AppointmentClient
	Loyalty      *LoyaltyClient
}

func NewClient(baseURL string) *Client {
	h := NewHttpClient(baseURL)
	return &Client{
		HTTP:         h,
		Auth:         &AuthClient{http: h},
		Institutes:   &InstituteClient{http: h},
		Appointments: &AppointmentClient{http: h},
		Loyalty:      &LoyaltyClient{http: h},
	}
}

func (c *Client) Close() {
	c.HTTP.Close()
}
