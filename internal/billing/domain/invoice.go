package billing

import "strings"

// Address is a postal address from the directory.
type Address struct {
	ID       string
	Lines    []string
	Town     string
	Postcode string
}

// String renders the address on one line.
func (a Address) String() string {
	parts := append([]string(nil), a.Lines...)
	if a.Town != "" {
		parts = append(parts, a.Town)
	}
	if a.Postcode != "" {
		parts = append(parts, a.Postcode)
	}
	return strings.Join(parts, ", ")
}

// Company is a licence holder or invoice account owner.
type Company struct {
	ID   string
	Name string
}

// Contact is a person acting for a company.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
}

// FullName joins the names.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// InvoiceAccount is the billing account an invoice is raised against.
type InvoiceAccount struct {
	ID            string
	AccountNumber string
	Company       Company
	Address       Address
}

// LicenceHolder is the company, contact and address holding a licence on a date.
type LicenceHolder struct {
	Company Company
	Contact Contact
	Address Address
}

// InvoiceLicence groups the transactions of one licence under one licence holder.
type InvoiceLicence struct {
	ID            string
	InvoiceID     string
	LicenceNumber string
	Company       Company
	Contact       Contact
	Address       Address
	Transactions  []*Transaction
}

// NewInvoiceLicence builds an invoice licence for a licence holder.
func NewInvoiceLicence(id, licenceNumber string, holder LicenceHolder) (*InvoiceLicence, error) {
	if licenceNumber == "" {
		return nil, ErrEmptyID
	}
	return &InvoiceLicence{
		ID:            id,
		LicenceNumber: licenceNumber,
		Company:       holder.Company,
		Contact:       holder.Contact,
		Address:       holder.Address,
	}, nil
}

// UniqueID identifies the licence and licence holder combination.
func (il *InvoiceLicence) UniqueID() string {
	return strings.Join([]string{il.LicenceNumber, il.Company.ID, il.Address.ID, il.Contact.ID}, ".")
}

// TwoPartTariffTransactions returns the two-part-tariff supplementary transactions.
func (il *InvoiceLicence) TwoPartTariffTransactions() []*Transaction {
	var result []*Transaction
	for _, t := range il.Transactions {
		if t.IsTwoPartTariffSupplementary {
			result = append(result, t)
		}
	}
	return result
}

// Invoice aggregates invoice licences under an invoice account for a financial year.
type Invoice struct {
	ID              string
	BatchID         string
	InvoiceAccount  InvoiceAccount
	FinancialYear   FinancialYear
	InvoiceLicences []*InvoiceLicence
}

// NewInvoice builds an empty invoice.
func NewInvoice(id, batchID string, account InvoiceAccount, fy FinancialYear) (*Invoice, error) {
	if account.ID == "" {
		return nil, ErrEmptyID
	}
	if fy.IsZero() {
		return nil, ErrInvalidFinancialYear
	}
	return &Invoice{ID: id, BatchID: batchID, InvoiceAccount: account, FinancialYear: fy}, nil
}

// AddInvoiceLicence merges il by UniqueID.
func (inv *Invoice) AddInvoiceLicence(il *InvoiceLicence) {
	if il == nil {
		return
	}
	for _, existing := range inv.InvoiceLicences {
		if existing.UniqueID() == il.UniqueID() {
			existing.Transactions = append(existing.Transactions, il.Transactions...)
			return
		}
	}
	il.InvoiceID = inv.ID
	inv.InvoiceLicences = append(inv.InvoiceLicences, il)
}

// Transactions flattens every transaction on the invoice.
func (inv *Invoice) Transactions() []*Transaction {
	var result []*Transaction
	for _, il := range inv.InvoiceLicences {
		result = append(result, il.Transactions...)
	}
	return result
}
