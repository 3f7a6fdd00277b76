package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/javalens/internal/javaast"
)

const ordersController = `package com.acme.orders;

@RestController
@RequestMapping("/api/orders/")
public class OrderController {
    @GetMapping("/{id}")
    public Order get(long id) { return null; }

    @PostMapping
    public Order create(Order o) { return o; }

    @RequestMapping(value = "/bulk", method = RequestMethod.PUT)
    public void bulk() {}

    private void helper() {}
}
`

const billingClient = `@FeignClient(name = "billing-service", url = "http://billing")
public interface BillingClient {
    @PostMapping("/charge")
    Receipt charge(Order o);
}
`

const shippingListener = `@Component
public class ShipmentEvents {
    @KafkaListener(topics = {"orders.created", "orders.paid"})
    public void onOrder(String payload) {}
}
`

func TestEndpoints(t *testing.T) {
	a := New()
	require.NoError(t, a.Analyze(ordersController, "orders"))

	assert.Equal(t, []Endpoint{
		{Path: "/api/orders/{id}", Method: "GET", Service: "orders", Class: "OrderController", Handler: "get", Line: 7},
		{Path: "/api/orders/", Method: "POST", Service: "orders", Class: "OrderController", Handler: "create", Line: 10},
		{Path: "/api/orders/bulk", Method: "PUT", Service: "orders", Class: "OrderController", Handler: "bulk", Line: 13},
	}, a.Endpoints())
	assert.Len(t, a.APISummary()["orders"], 3)
}

func TestNonControllerMappingsAreIgnored(t *testing.T) {
	a := New()
	require.NoError(t, a.Analyze(billingClient, "orders"))
	assert.Empty(t, a.Endpoints())
}

func TestDependencies(t *testing.T) {
	a := New()
	require.NoError(t, a.Analyze(billingClient, "orders"))
	require.NoError(t, a.Analyze(shippingListener, "shipping"))

	assert.Equal(t, []Dependency{
		{Source: "orders", Target: "billing-service", Type: "feign", Details: "FeignClient interface: BillingClient"},
		{Source: "kafka", Target: "shipping", Type: "kafka", Details: "Listens to topic: orders.created"},
		{Source: "kafka", Target: "shipping", Type: "kafka", Details: "Listens to topic: orders.paid"},
	}, a.Dependencies())
	assert.Equal(t, []string{"orders", "shipping"}, a.Services())
}

func TestServiceGraph(t *testing.T) {
	a := New()
	require.NoError(t, a.Analyze(billingClient, "orders"))
	require.NoError(t, a.Analyze(shippingListener, "shipping"))
	require.NoError(t, a.Analyze(`@FeignClient("orders") interface OrdersClient {}`, "billing-service"))

	g := a.ServiceGraph()
	assert.Equal(t, []string{"billing-service", "orders", "shipping", "kafka"}, g.Nodes())
	assert.Equal(t, []string{"billing-service"}, g.DependsOn("orders"))
	assert.Equal(t, []string{"shipping"}, g.DependsOn("kafka"))
	assert.Len(t, g.Edges(), 4)
	assert.Equal(t, [][]string{{"billing-service", "orders"}}, g.Cycles())
}

func TestResetAndErrors(t *testing.T) {
	a := New()
	require.NoError(t, a.Analyze(ordersController, "orders"))
	a.Reset()
	assert.Empty(t, a.Endpoints())
	assert.Empty(t, a.Services())

	var verr *javaast.ValidationError
	assert.ErrorAs(t, a.Analyze(ordersController, ""), &verr)
	var perr *javaast.ParseError
	assert.ErrorAs(t, a.Analyze("class {", "x"), &perr)
}
