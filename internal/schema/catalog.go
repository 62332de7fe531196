package schema

import (
	"strings"
	"sync"
)

// Pre-built schemas for common enterprise systems, registered under their
// lower-case names.

var GenericCustomer = TargetSchema{
	Name:        "Generic_Customer",
	Version:     "1.0",
	Description: "Generic customer/contact schema",
	Columns: []TargetColumn{
		{Name: "first_name", DataType: TypeString, Required: true, MaxLength: 100,
			CommonSourceNames: []string{"fname", "first", "first_name", "firstname", "name", "cust_name", "customer_name"}},
		{Name: "last_name", DataType: TypeString, MaxLength: 100,
			CommonSourceNames: []string{"lname", "last", "last_name", "lastname", "surname"}},
		{Name: "email", DataType: TypeEmail,
			Pattern:           `^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`,
			CommonSourceNames: []string{"email", "email_id", "mail", "e-mail", "emailid"}},
		{Name: "phone", DataType: TypePhone,
			CommonSourceNames: []string{"phone", "mobile", "contact", "mobile_no", "phone_no", "mob", "cell"}},
		{Name: "address", DataType: TypeString,
			CommonSourceNames: []string{"address", "addr", "street", "location", "address1"}},
		{Name: "city", DataType: TypeString,
			CommonSourceNames: []string{"city", "town", "district"}},
		{Name: "state", DataType: TypeString,
			CommonSourceNames: []string{"state", "province", "region"}},
		{Name: "pincode", DataType: TypeString, Pattern: `^\d{6}$`,
			CommonSourceNames: []string{"pincode", "pin", "zip", "postal_code", "zipcode"}},
		{Name: "country", DataType: TypeString,
			CommonSourceNames: []string{"country", "nation"}},
		{Name: "gstin", DataType: TypeString,
			Pattern:           `^\d{2}[A-Z]{5}\d{4}[A-Z]{1}[A-Z\d]{1}[Z]{1}[A-Z\d]{1}$`,
			CommonSourceNames: []string{"gstin", "gst", "gst_no", "gstno", "gst_number"}},
	},
	RequiredColumns: []string{"first_name"},
	UniqueColumns:   []string{"email", "gstin"},
}

var TallyCustomer = TargetSchema{
	Name:        "Tally_Customer",
	Version:     "1.0",
	Description: "Tally ERP Customer/Ledger schema",
	Columns: []TargetColumn{
		{Name: "ledger_name", DataType: TypeString, Required: true, MaxLength: 256,
			Description:       "Party/Ledger name in Tally",
			CommonSourceNames: []string{"name", "party_name", "customer_name", "ledger", "account_name", "firm_name", "company_name"}},
		{Name: "alias", DataType: TypeString,
			Description:       "Alias name for the ledger",
			CommonSourceNames: []string{"short_name", "nick_name", "alias", "code"}},
		{Name: "parent_group", DataType: TypeString, Required: true,
			Description:       "Parent group (Sundry Debtors, Sundry Creditors, etc.)",
			AllowedValues:     []string{"Sundry Debtors", "Sundry Creditors", "Cash-in-Hand", "Bank Accounts"},
			CommonSourceNames: []string{"group", "parent", "category", "type"}},
		{Name: "gstin", DataType: TypeString,
			Pattern:           `^\d{2}[A-Z]{5}\d{4}[A-Z]{1}[A-Z\d]{1}Z[A-Z\d]{1}$`,
			Description:       "GST Identification Number",
			CommonSourceNames: []string{"gstin", "gst", "gst_no", "gstno", "gst_number"}},
		{Name: "pan", DataType: TypeString, Pattern: `^[A-Z]{5}[0-9]{4}[A-Z]{1}$`,
			Description:       "PAN Number",
			CommonSourceNames: []string{"pan", "pan_no", "panno", "pan_number"}},
		{Name: "address_line1", DataType: TypeString,
			Description:       "Address line 1",
			CommonSourceNames: []string{"address", "address1", "street", "address_line_1"}},
		{Name: "address_line2", DataType: TypeString,
			Description:       "Address line 2",
			CommonSourceNames: []string{"address2", "address_line_2", "landmark"}},
		{Name: "city", DataType: TypeString,
			CommonSourceNames: []string{"city", "town", "place"}},
		{Name: "state", DataType: TypeString,
			CommonSourceNames: []string{"state", "province"}},
		{Name: "pincode", DataType: TypeString, Pattern: `^\d{6}$`,
			CommonSourceNames: []string{"pincode", "pin", "zip", "postal_code"}},
		{Name: "country", DataType: TypeString,
			CommonSourceNames: []string{"country"}},
		{Name: "contact_person", DataType: TypeString,
			CommonSourceNames: []string{"contact", "contact_name", "contact_person", "poc"}},
		{Name: "phone", DataType: TypePhone,
			CommonSourceNames: []string{"phone", "mobile", "contact_no", "phone_no", "tel"}},
		{Name: "email", DataType: TypeEmail,
			CommonSourceNames: []string{"email", "email_id", "mail"}},
		{Name: "opening_balance", DataType: TypeFloat,
			Description:       "Opening balance (positive for debit, negative for credit)",
			CommonSourceNames: []string{"opening", "opening_bal", "ob", "balance"}},
		{Name: "credit_limit", DataType: TypeFloat,
			Description:       "Credit limit for the party",
			CommonSourceNames: []string{"credit_limit", "limit", "cl"}},
	},
	RequiredColumns: []string{"ledger_name", "parent_group"},
	UniqueColumns:   []string{"ledger_name", "gstin"},
}

var ZohoContact = TargetSchema{
	Name:        "Zoho_Contact",
	Version:     "1.0",
	Description: "Zoho CRM Contact schema",
	Columns: []TargetColumn{
		{Name: "first_name", DataType: TypeString, MaxLength: 100,
			CommonSourceNames: []string{"first_name", "firstname", "fname", "first"}},
		{Name: "last_name", DataType: TypeString, Required: true, MaxLength: 100,
			CommonSourceNames: []string{"last_name", "lastname", "lname", "last", "surname"}},
		{Name: "email", DataType: TypeEmail,
			CommonSourceNames: []string{"email", "email_id", "mail", "email_address"}},
		{Name: "phone", DataType: TypePhone,
			CommonSourceNames: []string{"phone", "work_phone", "office_phone", "landline"}},
		{Name: "mobile", DataType: TypePhone,
			CommonSourceNames: []string{"mobile", "cell", "mobile_phone", "cell_phone"}},
		{Name: "account_name", DataType: TypeString,
			Description:       "Associated company/account name",
			CommonSourceNames: []string{"company", "company_name", "organization", "account", "firm"}},
		{Name: "title", DataType: TypeString,
			Description:       "Job title/designation",
			CommonSourceNames: []string{"title", "designation", "job_title", "position"}},
		{Name: "department", DataType: TypeString,
			CommonSourceNames: []string{"department", "dept", "division"}},
		{Name: "mailing_street", DataType: TypeString,
			CommonSourceNames: []string{"address", "street", "mailing_address"}},
		{Name: "mailing_city", DataType: TypeString,
			CommonSourceNames: []string{"city", "mailing_city"}},
		{Name: "mailing_state", DataType: TypeString,
			CommonSourceNames: []string{"state", "mailing_state", "province"}},
		{Name: "mailing_zip", DataType: TypeString,
			CommonSourceNames: []string{"zip", "pincode", "postal_code", "mailing_zip"}},
		{Name: "mailing_country", DataType: TypeString,
			CommonSourceNames: []string{"country", "mailing_country"}},
		{Name: "lead_source", DataType: TypeString,
			AllowedValues: []string{"Advertisement", "Cold Call", "Employee Referral", "External Referral",
				"Online Store", "Partner", "Public Relations", "Trade Show", "Web Form", "Other"},
			CommonSourceNames: []string{"source", "lead_source", "how_did_you_hear"}},
		{Name: "description", DataType: TypeString,
			CommonSourceNames: []string{"description", "notes", "comments", "remarks"}},
	},
	RequiredColumns: []string{"last_name"},
	UniqueColumns:   []string{"email"},
}

var SalesInvoice = TargetSchema{
	Name:        "Sales_Invoice",
	Version:     "1.0",
	Description: "Generic Sales Invoice Line Item schema",
	Columns: []TargetColumn{
		{Name: "invoice_number", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"invoice_no", "inv_no", "bill_no", "invoice", "invoice_number"}},
		{Name: "invoice_date", DataType: TypeDate, Required: true,
			CommonSourceNames: []string{"date", "invoice_date", "bill_date", "inv_date"}},
		{Name: "customer_name", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"customer", "party", "buyer", "sold_to", "customer_name", "bill_to"}},
		{Name: "item_name", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"item", "product", "description", "particulars", "item_name", "goods"}},
		{Name: "hsn_code", DataType: TypeString, Pattern: `^\d{4,8}$`,
			CommonSourceNames: []string{"hsn", "hsn_code", "sac", "sac_code"}},
		{Name: "quantity", DataType: TypeFloat, Required: true,
			CommonSourceNames: []string{"qty", "quantity", "units", "nos"}},
		{Name: "unit", DataType: TypeString,
			AllowedValues:     []string{"Nos", "Pcs", "Kg", "Gm", "Ltr", "Mtr", "Box", "Doz", "Set"},
			CommonSourceNames: []string{"unit", "uom", "unit_of_measure"}},
		{Name: "rate", DataType: TypeFloat, Required: true,
			CommonSourceNames: []string{"rate", "price", "unit_price", "mrp"}},
		{Name: "amount", DataType: TypeFloat, Required: true,
			CommonSourceNames: []string{"amount", "total", "value", "line_total"}},
		{Name: "discount", DataType: TypeFloat,
			CommonSourceNames: []string{"discount", "disc", "discount_amount"}},
		{Name: "taxable_value", DataType: TypeFloat,
			CommonSourceNames: []string{"taxable", "taxable_value", "net_amount"}},
		{Name: "cgst_rate", DataType: TypeFloat,
			CommonSourceNames: []string{"cgst_rate", "cgst%", "cgst_percent"}},
		{Name: "cgst_amount", DataType: TypeFloat,
			CommonSourceNames: []string{"cgst", "cgst_amount", "cgst_amt"}},
		{Name: "sgst_rate", DataType: TypeFloat,
			CommonSourceNames: []string{"sgst_rate", "sgst%", "sgst_percent"}},
		{Name: "sgst_amount", DataType: TypeFloat,
			CommonSourceNames: []string{"sgst", "sgst_amount", "sgst_amt"}},
		{Name: "igst_rate", DataType: TypeFloat,
			CommonSourceNames: []string{"igst_rate", "igst%", "igst_percent"}},
		{Name: "igst_amount", DataType: TypeFloat,
			CommonSourceNames: []string{"igst", "igst_amount", "igst_amt"}},
		{Name: "total_amount", DataType: TypeFloat, Required: true,
			CommonSourceNames: []string{"grand_total", "invoice_total", "net_payable", "total_amount"}},
	},
	RequiredColumns: []string{"invoice_number", "invoice_date", "customer_name", "item_name", "quantity", "rate", "amount", "total_amount"},
	UniqueColumns:   []string{"invoice_number"},
}

var Employee = TargetSchema{
	Name:        "Employee",
	Version:     "1.0",
	Description: "HR Employee data schema",
	Columns: []TargetColumn{
		{Name: "employee_id", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"emp_id", "employee_id", "employee_code", "emp_code", "id"}},
		{Name: "first_name", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"first_name", "fname", "firstname"}},
		{Name: "last_name", DataType: TypeString,
			CommonSourceNames: []string{"last_name", "lname", "lastname", "surname"}},
		{Name: "email", DataType: TypeEmail,
			CommonSourceNames: []string{"email", "work_email", "official_email"}},
		{Name: "phone", DataType: TypePhone,
			CommonSourceNames: []string{"phone", "mobile", "contact"}},
		{Name: "department", DataType: TypeString,
			CommonSourceNames: []string{"department", "dept", "division"}},
		{Name: "designation", DataType: TypeString,
			CommonSourceNames: []string{"designation", "title", "position", "job_title"}},
		{Name: "date_of_joining", DataType: TypeDate,
			CommonSourceNames: []string{"doj", "joining_date", "date_of_joining", "start_date"}},
		{Name: "date_of_birth", DataType: TypeDate,
			CommonSourceNames: []string{"dob", "birth_date", "date_of_birth", "birthday"}},
		{Name: "pan", DataType: TypeString, Pattern: `^[A-Z]{5}[0-9]{4}[A-Z]{1}$`,
			CommonSourceNames: []string{"pan", "pan_no"}},
		{Name: "uan", DataType: TypeString, Pattern: `^\d{12}$`,
			Description:       "Universal Account Number (PF)",
			CommonSourceNames: []string{"uan", "pf_no", "pf_number"}},
		{Name: "bank_account", DataType: TypeString,
			CommonSourceNames: []string{"account_no", "bank_account", "acc_no"}},
		{Name: "ifsc_code", DataType: TypeString, Pattern: `^[A-Z]{4}0[A-Z0-9]{6}$`,
			CommonSourceNames: []string{"ifsc", "ifsc_code"}},
		{Name: "salary", DataType: TypeFloat,
			CommonSourceNames: []string{"salary", "ctc", "basic", "gross"}},
	},
	RequiredColumns: []string{"employee_id", "first_name"},
	UniqueColumns:   []string{"employee_id", "email", "pan"},
}

var SuperstoreOrder = TargetSchema{
	Name:        "Superstore_Order",
	Version:     "1.0",
	Description: "Superstore order schema with computed address and shipping days",
	Columns: []TargetColumn{
		{Name: "order_id", DataType: TypeString, Required: true,
			Description:       "Unique order identifier",
			CommonSourceNames: []string{"order_id", "order_no", "order_number"}},
		{Name: "order_date", DataType: TypeDate, Required: true,
			Description:       "Date the order was placed",
			CommonSourceNames: []string{"order_date", "date", "order_dt"}},
		{Name: "ship_date", DataType: TypeDate, Required: true,
			Description:       "Date the order was shipped",
			CommonSourceNames: []string{"ship_date", "shipping_date", "shipped_date"}},
		{Name: "shipping_days", DataType: TypeInteger, Required: true,
			Description:        "Days between order and shipping (computed: ship_date - order_date)",
			CommonSourceNames:  []string{"shipping_days", "delivery_days", "days_to_ship"},
			TransformationHint: "COMPUTE: ship_date - order_date"},
		{Name: "full_address", DataType: TypeString, Required: true,
			Description:        "Complete address (computed: city + state + country)",
			CommonSourceNames:  []string{"full_address", "address", "complete_address"},
			TransformationHint: "CONCATENATE: city, state, country WITH ', '"},
		{Name: "city", DataType: TypeString,
			CommonSourceNames: []string{"city", "town"}},
		{Name: "state", DataType: TypeString,
			CommonSourceNames: []string{"state", "province", "region"}},
		{Name: "country", DataType: TypeString,
			CommonSourceNames: []string{"country", "nation"}},
		{Name: "customer_name", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"customer_name", "customer", "name", "buyer"}},
		{Name: "product_name", DataType: TypeString, Required: true,
			CommonSourceNames: []string{"product_name", "product", "item", "item_name"}},
		{Name: "category", DataType: TypeString,
			CommonSourceNames: []string{"category", "product_category", "type"}},
		{Name: "sales", DataType: TypeFloat, Required: true,
			CommonSourceNames: []string{"sales", "amount", "revenue", "total"}},
		{Name: "quantity", DataType: TypeInteger, Required: true,
			CommonSourceNames: []string{"quantity", "qty", "units"}},
		{Name: "profit", DataType: TypeFloat,
			CommonSourceNames: []string{"profit", "margin", "earnings"}},
	},
	RequiredColumns: []string{"order_id", "order_date", "ship_date", "shipping_days", "full_address", "customer_name", "product_name", "sales", "quantity"},
	UniqueColumns:   []string{},
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*TargetSchema{
		"generic_customer": &GenericCustomer,
		"tally_customer":   &TallyCustomer,
		"zoho_contact":     &ZohoContact,
		"sales_invoice":    &SalesInvoice,
		"employee":         &Employee,
		"superstore_order": &SuperstoreOrder,
	}
)

// Get returns a registered schema by name (case-insensitive), nil when
// unknown.
func Get(name string) *TargetSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[strings.ToLower(name)]
}

// Register adds or replaces a custom schema under its lower-cased name.
func Register(s *TargetSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(s.Name)] = s
}

// Names lists the registered schema names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
