package asaas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type fakeAsaas struct {
	mux         *http.ServeMux
	created     atomic.Int32
	lastPayment paymentRequest
	qrStatus    int
	paymentCode int
	pixKeys     []pixKey
}

func newFakeAsaas(t *testing.T) (*fakeAsaas, *httptest.Server) {
	t.Helper()
	f := &fakeAsaas{mux: http.NewServeMux(), qrStatus: http.StatusOK, paymentCode: http.StatusOK}

	f.mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("access_token") != "sandbox-key" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]string{{"code": "invalid_access_token", "description": "A chave de API fornecida é inválida"}}})
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("cpfCnpj") == "98765432100" {
				writeJSON(w, http.StatusOK, customerList{TotalCount: 1, Data: []customer{{ID: "cus_existing"}}})
				return
			}
			writeJSON(w, http.StatusOK, customerList{})
		case http.MethodPost:
			writeJSON(w, http.StatusOK, customer{ID: "cus_new"})
		}
	})
	f.mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		f.created.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&f.lastPayment)
		if f.paymentCode != http.StatusOK {
			writeJSON(w, f.paymentCode, map[string]any{"errors": []map[string]string{{"code": "invalid_value", "description": "O valor da cobrança é inválido"}}})
			return
		}
		writeJSON(w, http.StatusOK, payment{
			ID:                "pay_123",
			Status:            "PENDING",
			ExternalReference: f.lastPayment.ExternalReference,
			InvoiceURL:        "https://sandbox.asaas.com/i/pay_123",
		})
	})
	f.mux.HandleFunc("/payments/pay_123/pixQrCode", func(w http.ResponseWriter, r *http.Request) {
		if f.qrStatus != http.StatusOK {
			writeJSON(w, f.qrStatus, map[string]string{"message": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, pixQRCode{Payload: "00020126580014br.gov.bcb.pix", EncodedImage: "iVBORw0KGgo="})
	})
	f.mux.HandleFunc("/payments/pay_123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, payment{ID: "pay_123", Status: "RECEIVED"})
	})
	f.mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, accountList{TotalCount: 1})
	})
	f.mux.HandleFunc("/pix/addressKeys", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusOK, pixKey{ID: "key_1", Key: "b6295ee1-f054-47d1-9e90-ee57b74f60d9", Type: "EVP", Status: "AWAITING_ACTIVATION"})
			return
		}
		writeJSON(w, http.StatusOK, pixKeyList{TotalCount: len(f.pixKeys), Data: f.pixKeys})
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestAdapter(t *testing.T, srv *httptest.Server, cfg Config) *Adapter {
	t.Helper()
	fixed := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	a, err := New(cfg, true, WithBaseURL(srv.URL), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("failed to build adapter: %v", err)
	}
	return a
}

func pixRequest() domain.ChargeRequest {
	return domain.ChargeRequest{
		Amount:            decimal.RequireFromString("150.00"),
		Description:       "Orçamento #42",
		ExternalReference: "CHG-1",
		PaymentMethod:     domain.MethodPix,
		Customer:          domain.Customer{Name: "Ana", TaxID: "12345678901"},
	}
}

func TestNew_RequiresSelectedKey(t *testing.T) {
	_, err := New(Config{ProdAPIKey: "prod-key"}, true)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing sandbox key, got %v", err)
	}

	a, err := New(Config{ProdAPIKey: "prod-key"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.baseURL != ProductionBaseURL {
		t.Errorf("expected production host, got %s", a.baseURL)
	}
}

func TestCreateCharge_PixEndToEnd(t *testing.T) {
	f, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	resp, err := a.CreateCharge(context.Background(), pixRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || resp.Status != domain.StatusPending || resp.PaymentID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.QRCode == "" || resp.QRCodeBase64 == "" {
		t.Errorf("expected pix qr data, got %+v", resp)
	}
	if resp.PaymentLink != "https://sandbox.asaas.com/i/pay_123" {
		t.Errorf("unexpected payment link %s", resp.PaymentLink)
	}

	sent := f.lastPayment
	if sent.Customer != "cus_new" || sent.BillingType != "PIX" || sent.Value != 150 {
		t.Errorf("unexpected payment body %+v", sent)
	}
	if sent.DueDate != "2026-03-11" {
		t.Errorf("expected due date 24h ahead, got %s", sent.DueDate)
	}
	if sent.ExternalReference != "CHG-1" {
		t.Errorf("expected external reference CHG-1, got %s", sent.ExternalReference)
	}
}

func TestCreateCharge_ReusesExistingCustomer(t *testing.T) {
	f, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	req := pixRequest()
	req.PaymentMethod = domain.MethodBoleto
	req.Customer.TaxID = "987.654.321-00"

	resp, err := a.CreateCharge(context.Background(), req)
	if err != nil || !resp.Success {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
	if f.lastPayment.Customer != "cus_existing" || f.lastPayment.BillingType != "BOLETO" {
		t.Errorf("unexpected payment body %+v", f.lastPayment)
	}
	if resp.QRCode != "" {
		t.Error("boleto charges must not carry qr data")
	}
}

func TestCreateCharge_QRFailureIsNotFatal(t *testing.T) {
	f, srv := newFakeAsaas(t)
	f.qrStatus = http.StatusNotFound
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	resp, err := a.CreateCharge(context.Background(), pixRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.PaymentID != "pay_123" {
		t.Fatalf("expected successful charge, got %+v", resp)
	}
	if resp.QRCode != "" || resp.QRCodeBase64 != "" {
		t.Errorf("expected no qr data, got %+v", resp)
	}
}

func TestCreateCharge_MissingTaxID(t *testing.T) {
	f, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	req := pixRequest()
	req.Customer.TaxID = ""

	resp, err := a.CreateCharge(context.Background(), req)
	if err != nil {
		t.Fatalf("expected rejection response, got error %v", err)
	}
	if resp.Success || resp.Status != domain.StatusRejected || !strings.Contains(resp.Error, "CPF/CNPJ") {
		t.Errorf("unexpected response %+v", resp)
	}
	if f.created.Load() != 0 {
		t.Error("no payment must be created without tax id")
	}
}

func TestCreateCharge_ProviderRejectionKeepsDetail(t *testing.T) {
	f, srv := newFakeAsaas(t)
	f.paymentCode = http.StatusBadRequest
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	resp, err := a.CreateCharge(context.Background(), pixRequest())
	if err != nil {
		t.Fatalf("rejections must not be returned as errors: %v", err)
	}
	if resp.Success || resp.Status != domain.StatusRejected {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Error != "O valor da cobrança é inválido" {
		t.Errorf("provider detail not preserved: %q", resp.Error)
	}
}

func TestCreateCharge_ServerErrorIsReturned(t *testing.T) {
	f, srv := newFakeAsaas(t)
	f.paymentCode = http.StatusBadGateway
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	resp, err := a.CreateCharge(context.Background(), pixRequest())
	if err == nil {
		t.Fatalf("expected transport error, got %+v", resp)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	_, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	resp, err := a.GetPaymentStatus(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.StatusApproved {
		t.Errorf("expected approved, got %s", resp.Status)
	}

	if _, err := a.GetPaymentStatus(context.Background(), "pay_missing"); err == nil {
		t.Error("expected error for unknown payment")
	}
}

func TestHandleNotification(t *testing.T) {
	a, err := New(Config{SandboxAPIKey: "k"}, true)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_123","status":"RECEIVED","externalReference":"CHG-1"}}`)
	n, err := a.HandleNotification(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ExternalReference != "CHG-1" || n.Status != domain.StatusApproved || n.PaymentID != "pay_123" {
		t.Errorf("unexpected notification %+v", n)
	}

	_, err = a.HandleNotification(context.Background(), []byte(`{"event":"PAYMENT_RECEIVED"}`))
	if !errors.Is(err, domain.ErrInvalidNotification) {
		t.Errorf("expected ErrInvalidNotification, got %v", err)
	}

	_, err = a.HandleNotification(context.Background(), []byte(`not json`))
	if !errors.Is(err, domain.ErrInvalidNotification) {
		t.Errorf("expected ErrInvalidNotification for malformed body, got %v", err)
	}
}

func TestVerifyNotification(t *testing.T) {
	a, _ := New(Config{SandboxAPIKey: "k", WebhookToken: "whsec"}, true)

	headers := http.Header{}
	headers.Set("asaas-access-token", "whsec")
	if err := a.VerifyNotification(headers, nil); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}

	headers.Set("asaas-access-token", "other")
	if err := a.VerifyNotification(headers, nil); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	open, _ := New(Config{SandboxAPIKey: "k"}, true)
	if err := open.VerifyNotification(http.Header{}, nil); err != nil {
		t.Errorf("verification must be skipped without token, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	f, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	res := a.TestConnection(context.Background())
	if !res.Success || !strings.Contains(res.Message, "chave aleatória") {
		t.Errorf("expected success with pix key advisory, got %+v", res)
	}

	f.pixKeys = []pixKey{{ID: "key_1", Type: "EVP", Status: "ACTIVE"}}
	res = a.TestConnection(context.Background())
	if !res.Success || strings.Contains(res.Message, "chave aleatória") {
		t.Errorf("expected plain success, got %+v", res)
	}
}

func TestTestConnection_InvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]string{{"code": "invalid_access_token", "description": "A chave de API fornecida é inválida"}}})
	}))
	defer srv.Close()

	a, _ := New(Config{SandboxAPIKey: "wrong"}, true, WithBaseURL(srv.URL))
	res := a.TestConnection(context.Background())
	if res.Success || !strings.Contains(res.Message, "A chave de API fornecida é inválida") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCreateRandomPixKey(t *testing.T) {
	_, srv := newFakeAsaas(t)
	a := newTestAdapter(t, srv, Config{SandboxAPIKey: "sandbox-key"})

	key, err := a.CreateRandomPixKey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Type != "EVP" || key.Key == "" {
		t.Errorf("unexpected key %+v", key)
	}
}
