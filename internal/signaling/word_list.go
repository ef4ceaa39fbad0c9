package signaling

var adjectives = []string{
	"Swift", "Brave", "Bright", "Clever", "Calm", "Gentle", "Noble", "Fierce",
	"Quick", "Happy", "Mighty", "Bold", "Wise", "Lucky", "Daring", "Kind",
	"Sly", "Quiet", "Shy", "Loyal", "Eager", "Strong", "Zesty", "Sharp",
}

var nouns = []string{
	"Fox", "Hawk", "Lion", "Bear", "Wolf", "Falcon", "Tiger", "Eagle",
	"Panther", "Otter", "Raven", "Panda", "Cougar", "Shark", "Lynx", "Badger",
	"Dragon", "Phoenix", "Falcon", "Cheetah", "Jaguar", "Cobra", "Viper", "Stag",
}
