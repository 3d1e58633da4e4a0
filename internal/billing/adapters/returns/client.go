package returns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "abstraction-billing/internal/billing/domain"
)

// Client fetches abstraction returns from the returns service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a returns client.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("returns: empty base url")
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

type returnsPage struct {
	Data []returnResponse `json:"data"`
}

type returnResponse struct {
	ID                string            `json:"returnId"`
	LicenceNumber     string            `json:"licenceRef"`
	Status            string            `json:"status"`
	IsUnderQuery      bool              `json:"underQuery"`
	IsSummer          bool              `json:"isSummer"`
	ReceivedDate      string            `json:"receivedDate"`
	AbstractionPeriod abstractionPeriod `json:"abstractionPeriod"`
	Purposes          []purpose         `json:"purposes"`
	Lines             []lineResponse    `json:"lines"`
}

type abstractionPeriod struct {
	StartDay   int `json:"periodStartDay"`
	StartMonth int `json:"periodStartMonth"`
	EndDay     int `json:"periodEndDay"`
	EndMonth   int `json:"periodEndMonth"`
}

type purpose struct {
	Code string `json:"tertiary"`
}

type lineResponse struct {
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ListReturns returns the licence's returns due for the financial year and season.
func (c *Client) ListReturns(ctx context.Context, licenceNumber string, fy billing.FinancialYear, isSummer bool) ([]billing.Return, error) {
	if licenceNumber == "" {
		return nil, errors.New("returns: empty licence number")
	}
	query := url.Values{}
	query.Set("licenceRef", licenceNumber)
	query.Set("startDate", billing.FormatDate(fy.Start()))
	query.Set("endDate", billing.FormatDate(fy.End()))
	query.Set("isSummer", strconv.FormatBool(isSummer))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/returns?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []billing.Return{}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("returns: http %d", resp.StatusCode)
	}
	var page returnsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}

	result := make([]billing.Return, 0, len(page.Data))
	for _, item := range page.Data {
		ret, err := item.domain()
		if err != nil {
			return nil, fmt.Errorf("returns: return %s: %w", item.ID, err)
		}
		result = append(result, ret)
	}
	return result, nil
}

func (r returnResponse) domain() (billing.Return, error) {
	status, err := billing.ParseReturnStatus(r.Status)
	if err != nil {
		return billing.Return{}, err
	}
	period, err := billing.NewAbstractionPeriod(
		r.AbstractionPeriod.StartDay, time.Month(r.AbstractionPeriod.StartMonth),
		r.AbstractionPeriod.EndDay, time.Month(r.AbstractionPeriod.EndMonth),
	)
	if err != nil {
		return billing.Return{}, err
	}
	received, err := billing.ParseDate(r.ReceivedDate)
	if err != nil {
		return billing.Return{}, err
	}
	ret := billing.Return{
		ID:                r.ID,
		LicenceNumber:     r.LicenceNumber,
		Status:            status,
		IsUnderQuery:      r.IsUnderQuery,
		IsSummer:          r.IsSummer,
		ReceivedDate:      received,
		AbstractionPeriod: period,
	}
	for _, p := range r.Purposes {
		if p.Code != "" {
			ret.PurposeCodes = append(ret.PurposeCodes, p.Code)
		}
	}
	for _, line := range r.Lines {
		start, err := billing.ParseDate(line.StartDate)
		if err != nil {
			return billing.Return{}, err
		}
		end, err := billing.ParseDate(line.EndDate)
		if err != nil {
			return billing.Return{}, err
		}
		dr, err := billing.NewDateRange(start, end)
		if err != nil {
			return billing.Return{}, err
		}
		ret.Lines = append(ret.Lines, billing.ReturnLine{DateRange: dr, Quantity: line.Quantity})
	}
	return ret, nil
}
