package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeMarkers(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		ok         bool
		outOfStock bool
		failure    string
	}{
		{name: "done", body: `{"msg":"done"}`, ok: true, failure: "fallback"},
		{name: "done with false error", body: `{"msg":"done","error":false}`, ok: true, failure: "fallback"},
		{name: "stock", body: `{"msg":"Item is out of stock","error":"stock"}`, outOfStock: true, failure: "Item is out of stock"},
		{name: "rejection message", body: `{"msg":"fail","message":"Wrong password"}`, failure: "Wrong password"},
		{name: "error sentence", body: `{"error":"Order already assigned"}`, failure: "Order already assigned"},
		{name: "bare error flag", body: `{"msg":"done","error":true}`, failure: "fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(tc.body), &env))
			assert.Equal(t, tc.ok, env.OK())
			assert.Equal(t, tc.outOfStock, env.OutOfStock())
			assert.Equal(t, tc.failure, env.Failure("fallback"))
		})
	}
}

func TestLooseScalarsDecode(t *testing.T) {
	var line CartLine
	require.NoError(t, json.Unmarshal([]byte(`{"id":12,"item_id":"44","price":"120.50","qty":"3","addon":[{"id":1,"name":"Cheese","price":30}]}`), &line))
	assert.Equal(t, ID("12"), line.ID)
	assert.Equal(t, ID("44"), line.ItemID)
	assert.Equal(t, "120.5", line.Price.String())
	assert.Equal(t, Int(3), line.Qty)
	require.Len(t, line.Addons, 1)
	assert.Equal(t, "30", line.Addons[0].Price.String())

	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"9","status":"3","dboy_lat":"31.52","dboy_lng":null,"total":""}`), &order))
	assert.Equal(t, Int(3), order.Status)
	require.NotNil(t, order.RiderLat)
	assert.InDelta(t, 31.52, float64(*order.RiderLat), 1e-9)
	assert.Nil(t, order.RiderLng)
	assert.True(t, order.Total.IsZero())
}

func TestAmountSurvivesStaging(t *testing.T) {
	summary := CartSummary{ItemTotal: AmountFromInt(500), Currency: "Rs"}
	raw, err := json.Marshal(summary)
	require.NoError(t, err)

	var back CartSummary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.ItemTotal.Equal(summary.ItemTotal.Decimal))
}
