package pipeline

// Stage names for the built-in graphs
const (
	// lead
	StageProspect    Stage = "prospect"
	StageContacted   Stage = "contacted"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"

	// order
	StagePending    Stage = "pending"
	StageConfirmed  Stage = "confirmed"
	StageProcessing Stage = "processing"
	StageShipped    Stage = "shipped"
	StageDelivered  Stage = "delivered"
	StageCancelled  Stage = "cancelled"

	// project
	StagePlanning  Stage = "planning"
	StageActive    Stage = "active"
	StageOnHold    Stage = "on_hold"
	StageReview    Stage = "review"
	StageCompleted Stage = "completed"

	// task
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageBlocked    Stage = "blocked"
	StageDone       Stage = "done"
)

// DefaultDefinitions returns the built-in stage graphs for the four entity
// kinds. Terminal stages (won, delivered, completed, done) have no outgoing
// edges; lost and cancelled can be reopened.
func DefaultDefinitions() []*Definition {
	return []*Definition{
		{
			Kind: KindLead,
			Stages: []Stage{
				StageProspect, StageContacted, StageQualified,
				StageProposal, StageNegotiation, StageWon, StageLost,
			},
			Transitions: map[Stage][]Stage{
				StageProspect:    {StageContacted, StageLost},
				StageContacted:   {StageQualified, StageLost},
				StageQualified:   {StageProposal, StageLost},
				StageProposal:    {StageNegotiation, StageLost},
				StageNegotiation: {StageWon, StageLost},
				StageLost:        {StageProspect},
			},
			ApprovalGated: []Stage{StageWon},
		},
		{
			Kind: KindOrder,
			Stages: []Stage{
				StagePending, StageConfirmed, StageProcessing,
				StageShipped, StageDelivered, StageCancelled,
			},
			Transitions: map[Stage][]Stage{
				StagePending:    {StageConfirmed, StageCancelled},
				StageConfirmed:  {StageProcessing, StageCancelled},
				StageProcessing: {StageShipped, StageCancelled},
				StageShipped:    {StageDelivered},
				StageCancelled:  {StagePending},
			},
			ApprovalGated: []Stage{StageCancelled},
		},
		{
			Kind: KindProject,
			Stages: []Stage{
				StagePlanning, StageActive, StageOnHold,
				StageReview, StageCompleted, StageCancelled,
			},
			Transitions: map[Stage][]Stage{
				StagePlanning:  {StageActive, StageCancelled},
				StageActive:    {StageOnHold, StageReview, StageCancelled},
				StageOnHold:    {StageActive, StageCancelled},
				StageReview:    {StageCompleted, StageActive},
				StageCancelled: {StagePlanning},
			},
			ApprovalGated: []Stage{StageCancelled},
		},
		{
			Kind: KindTask,
			Stages: []Stage{
				StageTodo, StageInProgress, StageBlocked,
				StageDone, StageCancelled,
			},
			Transitions: map[Stage][]Stage{
				StageTodo:       {StageInProgress, StageCancelled},
				StageInProgress: {StageBlocked, StageDone, StageCancelled},
				StageBlocked:    {StageInProgress, StageCancelled},
				StageCancelled:  {StageTodo},
			},
			ApprovalGated: []Stage{StageCancelled},
		},
	}
}
