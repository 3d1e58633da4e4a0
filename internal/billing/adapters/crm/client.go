package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	billing "abstraction-billing/internal/billing/domain"
)

var errNotFound = errors.New("crm: not found")

// Client is a minimal CRM REST client resolving invoice accounts and licence holders.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a CRM client.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("crm: empty base url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type companyResponse struct {
	ID   string `json:"companyId"`
	Name string `json:"name"`
}

type contactResponse struct {
	ID        string `json:"contactId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type addressResponse struct {
	ID       string `json:"addressId"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	Address3 string `json:"address3"`
	Address4 string `json:"address4"`
	Town     string `json:"town"`
	Postcode string `json:"postcode"`
}

func (a addressResponse) domain() billing.Address {
	var lines []string
	for _, line := range []string{a.Address1, a.Address2, a.Address3, a.Address4} {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return billing.Address{ID: a.ID, Lines: lines, Town: a.Town, Postcode: a.Postcode}
}

type invoiceAccountResponse struct {
	ID            string          `json:"invoiceAccountId"`
	AccountNumber string          `json:"invoiceAccountNumber"`
	Company       companyResponse `json:"company"`
	Address       addressResponse `json:"address"`
}

type licenceHolderResponse struct {
	Company companyResponse  `json:"company"`
	Contact *contactResponse `json:"contact"`
	Address addressResponse  `json:"address"`
}

// GetInvoiceAccount loads an invoice account with its current address.
func (c *Client) GetInvoiceAccount(ctx context.Context, invoiceAccountID string) (billing.InvoiceAccount, error) {
	if invoiceAccountID == "" {
		return billing.InvoiceAccount{}, errors.New("crm: empty invoice account id")
	}
	var resp invoiceAccountResponse
	if err := c.getJSON(ctx, "/invoice-accounts/"+url.PathEscape(invoiceAccountID), nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return billing.InvoiceAccount{}, fmt.Errorf("%w: invoice account %s", billing.ErrNotFound, invoiceAccountID)
		}
		return billing.InvoiceAccount{}, err
	}
	if resp.ID == "" {
		resp.ID = invoiceAccountID
	}
	return billing.InvoiceAccount{
		ID:            resp.ID,
		AccountNumber: resp.AccountNumber,
		Company:       billing.Company{ID: resp.Company.ID, Name: resp.Company.Name},
		Address:       resp.Address.domain(),
	}, nil
}

// GetLicenceHolder loads the licence holder role effective on the date.
func (c *Client) GetLicenceHolder(ctx context.Context, licenceNumber string, at time.Time) (billing.LicenceHolder, error) {
	if licenceNumber == "" {
		return billing.LicenceHolder{}, errors.New("crm: empty licence number")
	}
	query := url.Values{}
	query.Set("licenceNumber", licenceNumber)
	query.Set("date", billing.FormatDate(at))
	var resp licenceHolderResponse
	if err := c.getJSON(ctx, "/licence-holders", query, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return billing.LicenceHolder{}, fmt.Errorf("%w: licence holder %s", billing.ErrNotFound, licenceNumber)
		}
		return billing.LicenceHolder{}, err
	}
	holder := billing.LicenceHolder{
		Company: billing.Company{ID: resp.Company.ID, Name: resp.Company.Name},
		Address: resp.Address.domain(),
	}
	if resp.Contact != nil {
		holder.Contact = billing.Contact{ID: resp.Contact.ID, FirstName: resp.Contact.FirstName, LastName: resp.Contact.LastName}
	}
	return holder, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("crm: http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
