package kafka

// Topic names used by the lottery service. Overridable via config.
const (
	TopicRoundEvents  = "lottery-round-events"
	TopicTicketsSold  = "lottery-tickets-sold"
	TopicWinnersDrawn = "lottery-winners-drawn"
)
