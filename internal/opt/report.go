package opt

// Report summarizes a solved allocation for operators: demand split, capacity
// usage, and which producer carries the volume and the price advantage.
type Report struct {
	Dose1Demand       [NumGroups]float64    `json:"dose1Demand"`
	Dose2Demand       [NumGroups]float64    `json:"dose2Demand"`
	TotalDemand       float64               `json:"totalDemand"`
	TotalProduction   float64               `json:"totalProduction"`
	CapacityUsagePct  float64               `json:"capacityUsagePct"`
	CheaperProducer   int                   `json:"cheaperProducer"`
	LargerProducer    int                   `json:"largerProducer"`
	ProducerCost      [NumProducers]float64 `json:"producerCost"`
	ProducerCostShare [NumProducers]float64 `json:"producerCostShare"`
}

// BuildReport derives the supplementary report from one result. Pure
// function of its inputs.
func BuildReport(p Problem, t Timing, r Result) Report {
	horizon := p.Series.Horizon()
	rep := Report{CheaperProducer: 1, LargerProducer: 1}
	for g := 0; g < NumGroups; g++ {
		rep.Dose1Demand[g] = r.U1[g] * windowSum(p.Series.S[g], t.Tau1[g], t.Tau2[g])
		rep.Dose2Demand[g] = r.U2[g] * windowSum(p.Series.V1[g], t.Tau2[g], horizon)
		rep.TotalDemand += rep.Dose1Demand[g] + rep.Dose2Demand[g]
	}
	totalCost := 0.0
	for i := 0; i < NumProducers; i++ {
		rep.TotalProduction += r.VPrime[i]
		rep.ProducerCost[i] = r.VPrime[i] * p.Costs.P[i]
		totalCost += rep.ProducerCost[i]
	}
	if p.Costs.L > 0 {
		rep.CapacityUsagePct = rep.TotalProduction / p.Costs.L * 100
	}
	if p.Costs.P[1] < p.Costs.P[0] {
		rep.CheaperProducer = 2
	}
	if r.VPrime[1] > r.VPrime[0] {
		rep.LargerProducer = 2
	}
	if totalCost > 0 {
		for i := 0; i < NumProducers; i++ {
			rep.ProducerCostShare[i] = rep.ProducerCost[i] / totalCost
		}
	}
	return rep
}
