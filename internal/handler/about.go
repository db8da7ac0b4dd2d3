package handler

type highlight struct {
	Title       string
	Description string
}

type milestone struct {
	Year    string
	Summary string
}

var aboutHighlights = []highlight{
	{
		Title:       "AWS Practitioner",
		Description: "Hands-on experience launching resilient stacks on EC2, automating bootstrap scripts, and baking AMIs with repeatable tooling.",
	},
	{
		Title:       "Observability advocate",
		Description: "Builds health checks, layered logging, and metadata probes so cloud resources stay transparent.",
	},
	{
		Title:       "Security minded",
		Description: "Applies IAM least privilege, secrets management, and audited change pipelines to every deployment.",
	},
}

var aboutTimeline = []milestone{
	{"2020", "Started the cloud journey focusing on EC2 and automation fundamentals."},
	{"2021", "Hardened multi-tier workloads with load balancers, ASGs, and blue/green rolls."},
	{"2022", "Expanded into container orchestration and hybrid networking."},
	{"2023", "Led cost-optimization and observability upgrades across production fleets."},
	{"2024", "Building portfolio-ready demos like Nimbus Nexus to showcase modern ops discipline."},
}
