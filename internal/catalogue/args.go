package catalogue

// Operation names exposed to the model.
const (
	OpCreatePoll            = "createPoll"
	OpGetPollResult         = "getPollResult"
	OpGetSpecificPollResult = "getSpecificPollResult"
	OpUpdatePoll            = "updatePoll"
	OpDeletePoll            = "deletePoll"
	OpDeleteAllPolls        = "deleteAllPolls"
	OpVotePoll              = "votePoll"
)

// Args is the decoded, typed argument set of one action request.
type Args interface {
	Operation() string
}

// Optional parameters are pointers so an absent value differs from an empty one.

type CreatePollArgs struct {
	Question    string  `json:"question" jsonschema_description:"Question the poll asks"`
	Option1     string  `json:"option1" jsonschema_description:"First poll option"`
	Option2     string  `json:"option2" jsonschema_description:"Second poll option"`
	Option3     *string `json:"option3,omitempty" jsonschema_description:"Third poll option (optional)"`
	Option4     *string `json:"option4,omitempty" jsonschema_description:"Fourth poll option (optional)"`
	Description *string `json:"description,omitempty" jsonschema_description:"Longer description shown with the poll (optional)"`
	FileURL     *string `json:"file_url,omitempty" jsonschema_description:"Uploaded file or image URL (optional)"`
	FileType    *string `json:"file_type,omitempty" jsonschema_description:"Attachment type: image, pdf or doc (optional)"`
}

type GetPollResultArgs struct{}

type GetSpecificPollResultArgs struct {
	PollID       *string `json:"poll_id,omitempty" jsonschema_description:"ID of the poll (preferred)"`
	PollQuestion *string `json:"poll_question,omitempty" jsonschema_description:"Part of the poll question, used when no ID is known"`
}

type UpdatePollArgs struct {
	PollID        *string `json:"poll_id,omitempty" jsonschema_description:"ID of the poll to update (preferred)"`
	QuestionMatch *string `json:"question_match,omitempty" jsonschema_description:"Part of the poll question, used to find the poll when no ID is known"`
	Question      *string `json:"question,omitempty" jsonschema_description:"New question text (optional)"`
	Option1       *string `json:"option1,omitempty" jsonschema_description:"Updated option 1 (optional)"`
	Option2       *string `json:"option2,omitempty" jsonschema_description:"Updated option 2 (optional)"`
	Option3       *string `json:"option3,omitempty" jsonschema_description:"Updated option 3, empty to remove it (optional)"`
	Option4       *string `json:"option4,omitempty" jsonschema_description:"Updated option 4, empty to remove it (optional)"`
	IsActive      *bool   `json:"is_active,omitempty" jsonschema_description:"Set to false to close the poll or true to reopen it (optional)"`
}

type DeletePollArgs struct {
	PollID        *string `json:"poll_id,omitempty" jsonschema_description:"ID of the poll to close (preferred)"`
	QuestionMatch *string `json:"question_match,omitempty" jsonschema_description:"Part of the poll question, used to find the poll when no ID is known"`
}

type DeleteAllPollsArgs struct {
	Confirmed *bool `json:"confirmed,omitempty" jsonschema_description:"Must be true, and only after the user explicitly confirmed closing every poll"`
}

type VotePollArgs struct {
	PollID         *string `json:"poll_id,omitempty" jsonschema_description:"ID of the poll to vote on (preferred)"`
	PollQuestion   *string `json:"poll_question,omitempty" jsonschema_description:"Part of the poll question, used when no ID is known"`
	SelectedOption string  `json:"selected_option" jsonschema_description:"The option to vote for: 1, 2, 3 or 4"`
}

func (CreatePollArgs) Operation() string            { return OpCreatePoll }
func (GetPollResultArgs) Operation() string         { return OpGetPollResult }
func (GetSpecificPollResultArgs) Operation() string { return OpGetSpecificPollResult }
func (UpdatePollArgs) Operation() string            { return OpUpdatePoll }
func (DeletePollArgs) Operation() string            { return OpDeletePoll }
func (DeleteAllPollsArgs) Operation() string        { return OpDeleteAllPolls }
func (VotePollArgs) Operation() string              { return OpVotePoll }
