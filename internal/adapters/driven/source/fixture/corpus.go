package fixture

import "time"

func day(d int) time.Time {
	return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// corpus returns the built-in eight-thread equipment-return corpus.
// Identifiers and dates are stable; tests rely on them.
func corpus() []fixtureMessage {
	return []fixtureMessage{
		{
			sourceID: "G-001",
			threadID: "T-001",
			date:     day(0),
			from:     "clinic.manager@example.com",
			to:       []string{"returns@allergan.com"},
			subject:  "CoolSculpting Elite Return Request - Machine Serial CS-2024-001",
			snippet:  "We need to return our CoolSculpting Elite machine (Serial: CS-2024-001)...",
			body: `Dear Returns Team,

We need to return our CoolSculpting Elite machine (Serial: CS-2024-001) purchased in December 2024. The unit has been experiencing consistent temperature regulation issues that make it unsafe for patient treatments.

We've documented multiple instances where the machine won't process treatments without the P3 protocol, but even with P3 the cooling is erratic. Our technician reports the system shows Error Code E-47 repeatedly.

Please advise on the RMA process and return shipping requirements.

Best regards,
Dr. Sarah Wilson
Aesthetic Wellness Clinic`,
		},
		{
			sourceID: "G-002",
			threadID: "T-001",
			date:     day(1),
			from:     "returns@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "RE: CoolSculpting Elite Return Request - RMA#: RMA-2025-0847",
			snippet:  "I've created RMA#: RMA-2025-0847 for your return...",
			body: `Dr. Wilson,

Thank you for contacting us regarding your CoolSculpting Elite unit CS-2024-001.

I have created RMA-2025-0847 for your return. The return authorization expires in 30 days. The machine must be returned in the original packaging or an equivalent protective crate, and the return shipping label will be provided before pickup.

The unit will be inspected upon receipt. If the issues are confirmed as manufacturing defects you will receive a full credit. Our logistics team will contact you within 48 hours to schedule LTL freight pickup, and the return label and bill of lading will be emailed.

Maria Santos
Senior RMA Specialist
Allergan Aesthetics Returns Department`,
		},
		{
			sourceID: "G-003",
			threadID: "T-002",
			date:     day(2),
			from:     "logistics@abbvie.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "CoolSculpting Elite Return - LTL Pickup Coordination RMA-2025-0847",
			snippet:  "This is regarding the LTL pickup for your CoolSculpting Elite return...",
			body: `Dr. Wilson,

This is regarding the LTL pickup for your CoolSculpting Elite return (RMA-2025-0847).

The pickup window is February 8-10 with carrier XYZ Logistics, waybill WB-2025-3847. The machine must be palletized and secured, preferably in the original crate or an equivalent wooden crate, with all cables and accessories in a separate box.

The freight carrier will not accept the shipment if the unit is not properly crated, if the total weight exceeds 850 lbs, or if the dimensions exceed 48x36x72 inches. Your return label and bill of lading are attached.

Mike Chen
AbbVie Logistics Coordinator`,
		},
		{
			sourceID: "G-004",
			threadID: "T-003",
			date:     day(7),
			from:     "clinic.manager@example.com",
			to:       []string{"returns@allergan.com"},
			subject:  "URGENT: Return Packaging Problem - RMA-2025-0847",
			snippet:  "We have a critical issue with the CoolSculpting Elite return packaging...",
			body: `Returns Team,

We have a critical issue with the CoolSculpting Elite return packaging for RMA-2025-0847.

Our original crate was damaged during installation and cannot be used. We obtained a custom wooden crate measuring 50x38x74 inches but your logistics team says it exceeds the size limits. The machine cannot be safely shipped in a smaller container and the freight pickup is scheduled for tomorrow.

Either accept the slightly oversized crate or provide alternative packaging specifications that will work. This delay is preventing us from ordering a replacement unit.

Dr. Sarah Wilson`,
		},
		{
			sourceID: "G-005",
			threadID: "T-003",
			date:     day(7),
			from:     "returns@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "RE: URGENT: Return Packaging Problem - RMA-2025-0847",
			snippet:  "The 72 inch height limit is a hard constraint from our freight carriers...",
			body: `Dr. Wilson,

The 72 inch height limit is a hard constraint from our freight carriers, but we can approve the 74 inch crate as a one-time exception.

An additional handling fee of 150 dollars applies and will be credited if the return is approved. The special handling label must be attached to all four sides and you must sign the liability waiver for oversized freight before 5PM today.

The updated return label carries an OVERSIZED designation and the pickup can proceed tomorrow once we receive the signed waiver.

Maria Santos
Senior RMA Specialist`,
		},
		{
			sourceID: "G-006",
			threadID: "T-004",
			date:     day(21),
			from:     "returns@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "CoolSculpting Elite Return Processed - Credit Memo #CM-2025-1847",
			snippet:  "Your CoolSculpting Elite return has been received and inspected...",
			body: `Dr. Wilson,

Your CoolSculpting Elite return (RMA-2025-0847, Serial CS-2024-001) has been received and inspected.

The inspection confirmed the temperature regulation failure with Error Code E-47 and the P3 protocol bypass issues. The root cause is a faulty thermal sensor array and the unit is classified as a manufacturing defect.

The restocking fee is waived for manufacturing defects. After deducting 425 dollars of return shipping, credit memo CM-2025-1847 was issued for 45,075 dollars and will appear on your next statement within 7-10 business days.

You are eligible for priority replacement with extended warranty and a free training refresh for two technicians.

Maria Santos
Senior RMA Specialist
Allergan Aesthetics`,
		},
		{
			sourceID: "G-007",
			threadID: "T-005",
			date:     day(25),
			from:     "clinic.manager@example.com",
			to:       []string{"returns@allergan.com"},
			subject:  "CoolSculpting Elite - Replacement Unit Questions",
			snippet:  "Thank you for processing our return so efficiently...",
			body: `Hi Maria,

Thank you for processing our return so efficiently. Is the thermal sensor issue fixed in newer production units, and what is the lead time for a replacement CoolSculpting Elite?

Will the replacement come with updated P3 protocols? We are also considering ordering a second unit and would like to know about volume discounting.

Our patients have been asking when we will have CoolSculpting available again, so timing matters.

Dr. Sarah Wilson`,
		},
		{
			sourceID: "G-008",
			threadID: "T-005",
			date:     day(26),
			from:     "sales@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "RE: CoolSculpting Elite - Replacement Unit Questions",
			snippet:  "Thank you for your interest in replacement equipment...",
			body: `Dr. Wilson,

All units manufactured after January 2025 carry the updated Gen 3 thermal sensor array, which completely resolves the E-47 error issue. Current lead time for CoolSculpting Elite units is 6-8 weeks, but as a return customer your order can be prioritized for 4-5 week delivery.

New units ship with P3 protocol v2.1, which eliminates the bypass requirement issues you experienced. For two or more units ordered together we offer an 8 percent discount on the second unit plus free extended warranty on both.

Jennifer Walsh
Senior Sales Representative
Allergan Aesthetics`,
		},
		{
			sourceID: "G-009",
			threadID: "T-006",
			date:     day(3),
			from:     "tech.support@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "CoolSculpting Elite Diagnostic Review - Serial CS-2024-001",
			snippet:  "Remote diagnostics confirm repeated E-47 thermal sensor faults...",
			body: `Dr. Wilson,

Our remote diagnostics review of unit CS-2024-001 confirms repeated E-47 thermal sensor faults across 14 treatment attempts. The temperature regulation curve drifts outside tolerance within 90 seconds of applicator engagement.

This failure signature matches a known manufacturing defect in the 2024 thermal sensor array batch. We recommend proceeding with the RMA return rather than a field repair, since the sensor array is not serviceable on site.

Please reference this diagnostic report DR-8812 in your return paperwork.

Technical Support
Allergan Aesthetics`,
		},
		{
			sourceID: "G-010",
			threadID: "T-007",
			date:     day(9),
			from:     "dispatch@xyzlogistics.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "Pickup Confirmed - Waybill WB-2025-3847",
			snippet:  "Your freight pickup is confirmed for February 10...",
			body: `Aesthetic Wellness Clinic,

Your freight pickup is confirmed for February 10 under waybill WB-2025-3847. The driver will arrive between 8AM and noon with a liftgate truck.

Please have the crate palletized, the bill of lading printed, and the OVERSIZED handling labels affixed before arrival. The return label provided by Allergan must be attached to the documentation envelope.

XYZ Logistics Dispatch`,
		},
		{
			sourceID: "G-011",
			threadID: "T-008",
			date:     day(32),
			from:     "billing@allergan.com",
			to:       []string{"clinic.manager@example.com"},
			subject:  "Statement Notice - Credit Memo CM-2025-1847 Applied",
			snippet:  "Credit memo CM-2025-1847 for 45,075 dollars has been applied...",
			body: `Dear Customer,

Credit memo CM-2025-1847 for 45,075 dollars has been applied to your account for the returned CoolSculpting Elite unit under RMA-2025-0847. The credit appears on your March statement.

No further action is required for this return.

Billing Department
Allergan Aesthetics`,
		},
		{
			sourceID: "G-012",
			threadID: "T-008",
			date:     day(33),
			from:     "clinic.manager@example.com",
			to:       []string{"billing@allergan.com"},
			subject:  "RE: Statement Notice - Credit Memo CM-2025-1847 Applied",
			snippet:  "Confirming receipt of the credit on our statement...",
			body: `Billing Team,

Confirming receipt of the credit for the CoolSculpting Elite return on our March statement. This closes out RMA-2025-0847 on our side.

Dr. Sarah Wilson`,
		},
	}
}
