package observability

const (
	MetricPricerPricesTotal        = "pricer_prices_total"
	MetricPricerUnpricedTotal      = "pricer_unpriced_total"
	MetricPricerDecodeErrorsTotal  = "pricer_decode_errors_total"
	MetricPricerPriceSOL           = "pricer_price_sol"
	MetricPricerPriceGaugesDropped = "pricer_price_gauges_dropped_total"

	MetricIngestorAccountUpdates = "ingestor_account_updates_total"
	MetricIngestorSlotLag        = "ingestor_slot_lag"
	MetricIngestorStoreSize      = "ingestor_account_store_size"
	MetricIngestorPublishErrors  = "ingestor_publish_errors_total"

	MetricPublisherNATSacksTotal = "publisher_nats_acks_total"
	MetricPublisherNATSErrors    = "publisher_nats_errors_total"

	MetricDirectorySize = "directory_size"

	MetricRPCFetchedAccounts = "rpc_fetched_accounts_total"
	MetricRPCFetchErrors     = "rpc_fetch_errors_total"
)

// Namespace prefixes every metric the services export.
const Namespace = "dex"
