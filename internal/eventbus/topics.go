package eventbus

// Stable event-type strings published by the subsystems (spec §4.2).
const (
	TopicCampaignCreated   = "campaign.created"
	TopicCampaignUpdated   = "campaign.updated"
	TopicCampaignDeleted   = "campaign.deleted"
	TopicCampaignStarted   = "campaign.started"
	TopicCampaignPaused    = "campaign.paused"
	TopicCampaignCompleted = "campaign.completed"

	TopicAttackCreated   = "attack.created"
	TopicAttackUpdated   = "attack.updated"
	TopicAttackDeleted   = "attack.deleted"
	TopicAttackStarted   = "attack.started"
	TopicAttackCompleted = "attack.completed"

	TopicTaskCreated  = "task.created"
	TopicTaskAssigned = "task.assigned"
	TopicTaskProgress = "task.progress"
	TopicTaskCompleted = "task.completed"
	TopicTaskFailed   = "task.failed"

	TopicAgentRegistered = "agent.registered"
	TopicAgentHeartbeat  = "agent.heartbeat"
	TopicAgentOffline    = "agent.offline"
	TopicAgentError      = "agent.error"

	TopicHashCracked = "hash.cracked"

	TopicHashListCreated = "hash_list.created"
	TopicHashListUpdated = "hash_list.updated"

	TopicResourceUploaded = "resource.uploaded"
	TopicResourceDeleted  = "resource.deleted"
)
