package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func parseQueryForTest(t *testing.T, target string) (service.TicketListFilter, error) {
	t.Helper()
	app := fiber.New()
	var filter service.TicketListFilter
	var parseErr error
	app.Get("/tickets", func(c *fiber.Ctx) error {
		filter, parseErr = parseTicketQuery(c)
		return nil
	})
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	return filter, parseErr
}

func TestParseTicketQueryDefaults(t *testing.T) {
	filter, err := parseQueryForTest(t, "/tickets")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if filter.Limit != 20 || filter.Offset != 0 {
		t.Errorf("pagination defaults = limit %d offset %d", filter.Limit, filter.Offset)
	}
	if len(filter.Statuses) != 0 || filter.Category != nil || filter.SearchTerm != nil {
		t.Errorf("unexpected filters: %+v", filter)
	}
}

func TestParseTicketQueryFull(t *testing.T) {
	filter, err := parseQueryForTest(t, "/tickets?filter[status]=A,H&filter[category]=Billing&search=invoice&sort=-createdAt&page=3&page_size=10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(filter.Statuses) != 2 || filter.Statuses[0] != domain.TicketStatusActive || filter.Statuses[1] != domain.TicketStatusOnHold {
		t.Errorf("statuses = %+v", filter.Statuses)
	}
	if filter.Category == nil || *filter.Category != "Billing" {
		t.Errorf("category = %v", filter.Category)
	}
	if filter.SearchTerm == nil || *filter.SearchTerm != "invoice" {
		t.Errorf("search = %v", filter.SearchTerm)
	}
	if len(filter.Sort) != 1 || filter.Sort[0].Column != "created_at" || !filter.Sort[0].Desc {
		t.Errorf("sort = %+v", filter.Sort)
	}
	if filter.Limit != 10 || filter.Offset != 20 {
		t.Errorf("pagination = limit %d offset %d", filter.Limit, filter.Offset)
	}
}

func TestParseTicketQueryRejectsBadInput(t *testing.T) {
	if _, err := parseQueryForTest(t, "/tickets?filter[status]=Z"); err == nil {
		t.Fatal("invalid status accepted")
	}
	if _, err := parseQueryForTest(t, "/tickets?sort=secret_column"); err == nil {
		t.Fatal("unknown sort column accepted")
	}
}
