package ir

// EngineVersion is the noticeable engine version.
const EngineVersion = "0.1.0"
