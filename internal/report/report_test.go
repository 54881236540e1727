package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/phobologic/sigscan/internal/collect"
	"github.com/phobologic/sigscan/internal/model"
)

func sampleResult() *collect.Result {
	return &collect.Result{
		Signals: []model.Signal{
			{
				Type:          model.Log,
				Name:          "order_shipped",
				SourceFile:    "app/models/order.rb",
				DefiningClass: "Order",
				Line:          12,
				Level:         "info",
				Interpolated:  true,
			},
			{
				Type:             model.Counter,
				Name:             "orders.total",
				SourceFile:       "app/models/base.rb",
				DefiningClass:    "Base",
				InheritanceDepth: 1,
				Line:             4,
			},
		},
		DynamicCalls: []model.DynamicMetricCall{
			{
				Receiver:      "StatsD",
				MetricType:    model.Counter,
				DefiningClass: "Order",
				File:          "app/models/order.rb",
				Line:          20,
			},
		},
	}
}

func TestEncodeJSON(t *testing.T) {
	t.Parallel()
	out, err := EncodeJSON(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	var decoded collect.Result
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Signals) != 2 || len(decoded.DynamicCalls) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Signals[0].Name != "order_shipped" || !decoded.Signals[0].Interpolated {
		t.Errorf("signal = %+v", decoded.Signals[0])
	}
}

func TestEncodeJSONEmptyListsNotNull(t *testing.T) {
	t.Parallel()
	out, err := EncodeJSON(&collect.Result{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "null") {
		t.Errorf("empty result rendered null lists:\n%s", out)
	}
}

func TestEncodeText(t *testing.T) {
	t.Parallel()
	out := EncodeText(sampleResult())

	for _, want := range []string{
		"2 signal(s), 1 dynamic metric call(s)",
		"app/models/order.rb",
		"order_shipped",
		"level=info",
		"interpolated",
		"depth=1",
		"dynamic metric calls",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEncodeTextEmpty(t *testing.T) {
	t.Parallel()
	out := EncodeText(&collect.Result{})
	if !strings.Contains(out, "0 signal(s), 0 dynamic metric call(s)") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "dynamic metric calls (") {
		t.Errorf("empty result rendered dynamic section:\n%s", out)
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	t.Parallel()
	if _, err := Encode(&collect.Result{}, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestEncodeDispatch(t *testing.T) {
	t.Parallel()
	jsonOut, err := Encode(sampleResult(), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(jsonOut, "{") {
		t.Errorf("json output:\n%s", jsonOut)
	}
	textOut, err := Encode(sampleResult(), FormatText)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(textOut, "{") {
		t.Errorf("text output:\n%s", textOut)
	}
}
